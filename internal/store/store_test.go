package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/holdmed/internal/clinical"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	ms := NewDemoStore()

	patients, err := ms.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "1", patients[0].ID)
	assert.Equal(t, "2", patients[1].ID)

	p, err := ms.GetPatient(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", p.Name)
	assert.Same(t, patients[1], p)

	_, err = ms.GetPatient(ctx, "404")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestNewMemoryStoreRejectsBadRecords(t *testing.T) {
	now := time.Now()

	_, err := NewMemoryStore(&clinical.Patient{ID: "1"}, &clinical.Patient{ID: "1"})
	assert.Error(t, err)

	_, err = NewMemoryStore(&clinical.Patient{ID: "1", VitalSigns: []clinical.VitalSignSample{
		{Timestamp: now}, {Timestamp: now.Add(-time.Hour)},
	}})
	assert.ErrorIs(t, err, clinical.ErrUnorderedSeries)
}
