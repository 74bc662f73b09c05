package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stealthcompany.com/holdmed/internal/clinical"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrIngestionInProgress = errors.New("record ingestion in progress")
)

// Store is the read interface onto the clinical record store. Patients are
// returned with their full series and must be treated as immutable.
type Store interface {
	ListPatients(ctx context.Context) ([]*clinical.Patient, error)
	GetPatient(ctx context.Context, id string) (*clinical.Patient, error)
}

// MemoryStore is an in-process roster, used for the demo data and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	patients []*clinical.Patient
	byID     map[string]*clinical.Patient
}

// NewMemoryStore validates and indexes the given patients, keeping their order.
func NewMemoryStore(patients ...*clinical.Patient) (*MemoryStore, error) {
	ms := &MemoryStore{
		byID: make(map[string]*clinical.Patient, len(patients)),
	}
	for _, p := range patients {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := ms.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate patient id %s", p.ID)
		}
		ms.byID[p.ID] = p
		ms.patients = append(ms.patients, p)
	}
	return ms, nil
}

func (ms *MemoryStore) ListPatients(ctx context.Context) ([]*clinical.Patient, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*clinical.Patient, len(ms.patients))
	copy(out, ms.patients)
	return out, nil
}

func (ms *MemoryStore) GetPatient(ctx context.Context, id string) (*clinical.Patient, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p, ok := ms.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrPatientNotFound)
	}
	return p, nil
}
