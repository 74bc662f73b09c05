package couchbase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/store"
)

const patientKeyPrefix = "patient::"

// PatientKey is the document key of a patient record
func PatientKey(id string) string {
	return patientKeyPrefix + id
}

// PatientStore reads and writes patient records in the default collection.
// Reads fail with store.ErrIngestionInProgress while the ingest lock is held.
type PatientStore struct {
	conn   *ConnectionManager
	docs   *DocumentManager
	locker *DatabaseLocker
}

var _ store.Store = (*PatientStore)(nil)

// NewPatientStore creates a patient store over conn
func NewPatientStore(conn *ConnectionManager, docs *DocumentManager, locker *DatabaseLocker) *PatientStore {
	return &PatientStore{conn: conn, docs: docs, locker: locker}
}

func (ps *PatientStore) listQuery() string {
	return fmt.Sprintf(
		"SELECT d.* FROM `%s`.`_default`.`_default` AS d WHERE META(d).id LIKE $prefix ORDER BY META(d).id",
		ps.conn.GetBucketName(),
	)
}

func (ps *PatientStore) checkReadable(ctx context.Context) error {
	locked, err := ps.locker.CheckLockStatus(ctx)
	if err != nil {
		return err
	}
	if locked {
		return store.ErrIngestionInProgress
	}
	return nil
}

// ListPatients returns every patient record ordered by key.
func (ps *PatientStore) ListPatients(ctx context.Context) ([]*clinical.Patient, error) {
	if err := ps.checkReadable(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := ps.conn.GetCluster().Query(ps.listQuery(), &gocb.QueryOptions{
		Context:         ctx,
		NamedParameters: map[string]interface{}{"prefix": patientKeyPrefix + "%"},
	})
	if err != nil {
		log.Error().Err(err).Msg("Patient list query failed")
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var patients []*clinical.Patient
	for rows.Next() {
		var p clinical.Patient
		if err := rows.Row(&p); err != nil {
			log.Warn().Err(err).Msg("Failed to decode patient row")
			continue
		}
		if err := p.Validate(); err != nil {
			log.Warn().Err(err).Str("patient", p.ID).Msg("Skipping invalid patient record")
			continue
		}
		patients = append(patients, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	log.Debug().
		Int("count", len(patients)).
		Dur("duration", time.Since(start)).
		Msg("Patients queried successfully")
	return patients, nil
}

// GetPatient returns one patient record
func (ps *PatientStore) GetPatient(ctx context.Context, id string) (*clinical.Patient, error) {
	if err := ps.checkReadable(ctx); err != nil {
		return nil, err
	}

	var p clinical.Patient
	if err := ps.docs.GetDocument(ctx, PatientKey(id), &p); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, fmt.Errorf("%s: %w", id, store.ErrPatientNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPatient writes p. Only the holder of the ingest lock may write.
func (ps *PatientStore) UpsertPatient(ctx context.Context, p *clinical.Patient) error {
	if !ps.locker.IsLocked() {
		return fmt.Errorf("ingest lock not held, refusing to write %s", PatientKey(p.ID))
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return ps.docs.UpsertDocument(ctx, PatientKey(strings.TrimSpace(p.ID)), p)
}
