package couchbase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

const (
	clusterReadyTimeout = 30 * time.Second
	bucketReadyTimeout  = 30 * time.Second
)

// Config holds what is needed to reach the record bucket
type Config struct {
	URL      string
	Username string
	Password string
	Bucket   string
}

// ConnectionManager handles Couchbase cluster and bucket connections
type ConnectionManager struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	bucketName string
}

// connectionString turns an http:// or scheme-less address into a couchbase:// one.
func connectionString(url string) string {
	switch {
	case strings.HasPrefix(url, "couchbase://"), strings.HasPrefix(url, "couchbases://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "couchbase://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "couchbases://" + strings.TrimPrefix(url, "https://")
	default:
		return "couchbase://" + url
	}
}

// NewConnectionManager connects to the cluster and waits for the bucket.
func NewConnectionManager(cfg Config) (*ConnectionManager, error) {
	connStr := connectionString(cfg.URL)

	log.Info().
		Str("url", connStr).
		Str("bucket", cfg.Bucket).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(connStr, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	if err := cluster.WaitUntilReady(clusterReadyTimeout, nil); err != nil {
		cluster.Close(nil)
		return nil, fmt.Errorf("failed to wait for cluster: %w", err)
	}

	bucket := cluster.Bucket(cfg.Bucket)
	err = bucket.WaitUntilReady(bucketReadyTimeout, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		cluster.Close(nil)
		return nil, fmt.Errorf("bucket '%s' is not accessible: %w", cfg.Bucket, err)
	}

	log.Info().Msg("Couchbase connection created successfully")
	return &ConnectionManager{
		cluster:    cluster,
		bucket:     bucket,
		bucketName: cfg.Bucket,
	}, nil
}

// Close closes the Couchbase connection
func (cm *ConnectionManager) Close() error {
	return cm.cluster.Close(nil)
}

func (cm *ConnectionManager) GetBucket() *gocb.Bucket {
	return cm.bucket
}

func (cm *ConnectionManager) GetCluster() *gocb.Cluster {
	return cm.cluster
}

func (cm *ConnectionManager) GetBucketName() string {
	return cm.bucketName
}

// EnsurePrimaryIndex creates the bucket primary index the patient listing
// query scans, if it doesn't exist yet.
func (cm *ConnectionManager) EnsurePrimaryIndex(ctx context.Context) error {
	err := cm.cluster.QueryIndexes().CreatePrimaryIndex(cm.bucketName, &gocb.CreatePrimaryQueryIndexOptions{
		IgnoreIfExists: true,
		Context:        ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to create primary index on %s: %w", cm.bucketName, err)
	}
	return nil
}
