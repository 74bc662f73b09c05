package couchbase

import "context"

// Client wires the connection, documents, lock and patient store together
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
	locker      *DatabaseLocker
	patients    *PatientStore
}

// NewClient connects to Couchbase and builds the managers on top of the bucket.
func NewClient(cfg Config) (*Client, error) {
	connManager, err := NewConnectionManager(cfg)
	if err != nil {
		return nil, err
	}

	bucket := connManager.GetBucket()
	locker := NewDatabaseLocker(bucket)
	docManager := NewDocumentManager(bucket)

	return &Client{
		connManager: connManager,
		docManager:  docManager,
		locker:      locker,
		patients:    NewPatientStore(connManager, docManager, locker),
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

// EnsureIndexes creates the indexes the record store queries rely on
func (c *Client) EnsureIndexes(ctx context.Context) error {
	return c.connManager.EnsurePrimaryIndex(ctx)
}

func (c *Client) GetLocker() *DatabaseLocker {
	return c.locker
}

// Patients returns the record store backed by this client
func (c *Client) Patients() *PatientStore {
	return c.patients
}
