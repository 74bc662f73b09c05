package couchbase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectionString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"couchbase://db", "couchbase://db"},
		{"couchbases://db.example.com", "couchbases://db.example.com"},
		{"http://localhost", "couchbase://localhost"},
		{"https://cb.internal", "couchbases://cb.internal"},
		{"holdmed-db", "couchbase://holdmed-db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, connectionString(tt.in))
		})
	}
}

func TestLockDocumentActive(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	assert.True(t, lockDocument{Locked: true, ExpiresAt: now.Add(time.Minute)}.active(now))
	assert.False(t, lockDocument{Locked: true, ExpiresAt: now.Add(-time.Minute)}.active(now))
	assert.False(t, lockDocument{Locked: false, ExpiresAt: now.Add(time.Minute)}.active(now))
}

func TestPatientKey(t *testing.T) {
	assert.Equal(t, "patient::42", PatientKey("42"))
}
