package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAt(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)

	rec := RunRecord{
		ID:        "run-1",
		Timestamp: time.Now(),
		Target:    "http://localhost:8080",
		Scenarios: []string{"steady"},
		Requests:  1000,
		Failed:    10,
		ErrorRate: 0.01,
		AvgMs:     52.3,
		P95Ms:     140.0,
		Passed:    true,
	}
	require.NoError(t, s.Save(rec))

	got, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Target, got.Target)
	assert.Equal(t, rec.Requests, got.Requests)
	assert.True(t, got.Passed)

	_, err = s.Get("missing")
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(RunRecord{
			ID:        fmt.Sprintf("run-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Target:    "http://t",
		}))
	}

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "run-2", records[0].ID)
	assert.Equal(t, "run-0", records[2].ID)
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t)

	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}
