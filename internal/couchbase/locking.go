package couchbase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

const (
	IngestLockKey  = "_system/ingest_lock"
	DefaultLockTTL = 1 * time.Hour
)

var ErrAlreadyLocked = errors.New("record store is locked by another ingestion")

// lockDocument is stored under IngestLockKey while an ingestion runs
type lockDocument struct {
	Locked    bool      `json:"locked"`
	LockedAt  time.Time `json:"lockedAt"`
	LockedBy  string    `json:"lockedBy"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (d lockDocument) active(now time.Time) bool {
	return d.Locked && now.Before(d.ExpiresAt)
}

// DatabaseLocker keeps API readers out of the record store while ingestion
// rewrites it. The lock document also carries a server-side expiry so a
// crashed ingester cannot hold it forever.
type DatabaseLocker struct {
	collection *gocb.Collection

	mu     sync.Mutex
	locked bool
}

// NewDatabaseLocker creates a new database locker
func NewDatabaseLocker(bucket *gocb.Bucket) *DatabaseLocker {
	return &DatabaseLocker{
		collection: bucket.DefaultCollection(),
	}
}

// Lock takes the ingestion lock for owner, replacing an expired one.
func (l *DatabaseLocker) Lock(ctx context.Context, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return fmt.Errorf("database is already locked")
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	now := time.Now().UTC()
	doc := lockDocument{
		Locked:    true,
		LockedAt:  now,
		LockedBy:  owner,
		ExpiresAt: now.Add(ttl),
	}

	_, err := l.collection.Insert(IngestLockKey, doc, &gocb.InsertOptions{Context: ctx, Expiry: ttl})
	if errors.Is(err, gocb.ErrDocumentExists) {
		held, cas, getErr := l.read(ctx)
		if getErr != nil {
			return getErr
		}
		if held.active(now) {
			return fmt.Errorf("held by %s until %s: %w", held.LockedBy, held.ExpiresAt.Format(time.RFC3339), ErrAlreadyLocked)
		}
		_, err = l.collection.Replace(IngestLockKey, doc, &gocb.ReplaceOptions{Context: ctx, Cas: cas, Expiry: ttl})
	}
	if err != nil {
		return fmt.Errorf("failed to create lock document: %w", err)
	}

	l.locked = true
	log.Info().Str("owner", owner).Dur("ttl", ttl).Msg("Database locked successfully")
	return nil
}

// Unlock releases the lock taken by this locker
func (l *DatabaseLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return fmt.Errorf("database is not locked")
	}

	_, err := l.collection.Remove(IngestLockKey, &gocb.RemoveOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to remove lock document: %w", err)
	}

	l.locked = false
	log.Info().Msg("Database unlocked successfully")
	return nil
}

// IsLocked reports whether this process holds the lock
func (l *DatabaseLocker) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// CheckLockStatus reports whether any process currently holds the lock.
func (l *DatabaseLocker) CheckLockStatus(ctx context.Context) (bool, error) {
	doc, _, err := l.read(ctx)
	if errors.Is(err, ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return doc.active(time.Now().UTC()), nil
}

func (l *DatabaseLocker) read(ctx context.Context) (lockDocument, gocb.Cas, error) {
	res, err := l.collection.Get(IngestLockKey, &gocb.GetOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return lockDocument{}, 0, ErrDocumentNotFound
		}
		return lockDocument{}, 0, fmt.Errorf("failed to check lock status: %w", err)
	}

	var doc lockDocument
	if err := res.Content(&doc); err != nil {
		return lockDocument{}, 0, fmt.Errorf("failed to parse lock document: %w", err)
	}
	return doc, res.Cas(), nil
}
