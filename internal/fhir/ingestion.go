package fhir

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/metrics"
)

const (
	DefaultPatientCount = 50
	ingestWorkers       = 4
	lockOwner           = "holdmed-ingest"
)

// PatientWriter persists mapped patient records
type PatientWriter interface {
	UpsertPatient(ctx context.Context, p *clinical.Patient) error
}

// Locker keeps readers out of the store for the duration of a run
type Locker interface {
	Lock(ctx context.Context, owner string, ttl time.Duration) error
	Unlock(ctx context.Context) error
}

// Ingester copies patient records from a FHIR server into the record store
type Ingester struct {
	client  *Client
	writer  PatientWriter
	locker  Locker
	count   int
	lockTTL time.Duration
	now     func() time.Time
}

// Result summarizes one ingestion run
type Result struct {
	Fetched int
	Stored  int
	Failed  int
}

// NewIngester creates an ingester writing up to count patients per run.
func NewIngester(client *Client, writer PatientWriter, locker Locker, count int) *Ingester {
	if count <= 0 {
		count = DefaultPatientCount
	}
	return &Ingester{
		client:  client,
		writer:  writer,
		locker:  locker,
		count:   count,
		lockTTL: time.Hour,
		now:     time.Now,
	}
}

// Run performs one ingestion under the store lock. A patient that fails to
// fetch or store is logged and counted but doesn't abort the run.
func (in *Ingester) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	if err := in.locker.Lock(ctx, lockOwner, in.lockTTL); err != nil {
		metrics.RecordIngestionRun(start, "lock_failed", 0, 0)
		return res, fmt.Errorf("failed to lock record store: %w", err)
	}
	defer func() {
		// unlock even when ctx was cancelled mid-run
		unlockCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := in.locker.Unlock(unlockCtx); err != nil {
			log.Error().Err(err).Msg("Failed to unlock record store")
		}
	}()

	log.Info().Int("count", in.count).Msg("Fetching patients from FHIR API")
	patients, err := in.client.Patients(ctx, in.count)
	if err != nil {
		metrics.RecordIngestionRun(start, "failed", 0, 0)
		return res, fmt.Errorf("failed to fetch patients: %w", err)
	}
	res.Fetched = len(patients)
	metrics.RecordResourcesProcessed("Patient", len(patients))

	jobs := make(chan Patient)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < ingestWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pt := range jobs {
				err := in.ingestPatient(ctx, pt)

				mu.Lock()
				if err != nil {
					res.Failed++
				} else {
					res.Stored++
				}
				mu.Unlock()

				if err != nil {
					log.Warn().Err(err).Str("patient", pt.ID).Msg("Failed to ingest patient")
				}
			}
		}()
	}

feed:
	for _, pt := range patients {
		select {
		case jobs <- pt:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	status := "success"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	metrics.RecordIngestionRun(start, status, res.Stored, res.Failed)

	log.Info().
		Int("fetched", res.Fetched).
		Int("stored", res.Stored).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("Completed FHIR ingestion")

	return res, ctx.Err()
}

func (in *Ingester) ingestPatient(ctx context.Context, pt Patient) error {
	if pt.ID == "" {
		return clinical.ErrMissingPatientID
	}

	observations, err := in.client.Observations(ctx, pt.ID)
	if err != nil {
		return fmt.Errorf("observations: %w", err)
	}
	metrics.RecordResourcesProcessed("Observation", len(observations))

	procedure, err := in.client.LatestProcedure(ctx, pt.ID)
	if err != nil {
		return fmt.Errorf("procedure: %w", err)
	}
	if procedure != nil {
		metrics.RecordResourcesProcessed("Procedure", 1)
	}

	record := MapPatient(&pt, observations, procedure, in.now())
	if err := in.writer.UpsertPatient(ctx, record); err != nil {
		return err
	}

	log.Debug().
		Str("patient", record.ID).
		Int("vitals", len(record.VitalSigns)).
		Int("labs", len(record.LabResults)).
		Msg("Patient record stored")
	return nil
}
