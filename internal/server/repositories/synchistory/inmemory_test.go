package synchistory

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casesync/internal/common"
	"casesync/internal/server/models"
)

func TestAppendAndLookup(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	rev1, err := r.AppendEntry(ctx, 1, "device-A7", "interviewer7", models.SyncPut, "")
	require.NoError(t, err)
	rev2, err := r.AppendEntry(ctx, 1, "device-A7", "interviewer7", models.SyncGet, "A=1")
	require.NoError(t, err)
	assert.Equal(t, rev1+1, rev2)

	last, err := r.LastEntryForDevice(ctx, 1, "device-A7")
	require.NoError(t, err)
	assert.Equal(t, rev2, last.Revision)
	assert.Equal(t, models.SyncGet, last.Direction)
	assert.Equal(t, "A=1", last.Universe)

	at, err := r.EntryAtRevision(ctx, 1, rev1)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPut, at.Direction)

	_, err = r.LastEntryForDevice(ctx, 1, "device-unknown")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRevisionsAreScopedPerDictionary(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	rev1, err := r.AppendEntry(ctx, 1, "d", "u", models.SyncPut, "")
	require.NoError(t, err)
	rev2, err := r.AppendEntry(ctx, 2, "d", "u", models.SyncPut, "")
	require.NoError(t, err)

	// each dictionary counts from 1 on its own
	assert.Equal(t, int64(1), rev1)
	assert.Equal(t, int64(1), rev2)
}

func TestDeleteEntry(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	rev, err := r.AppendEntry(ctx, 1, "d", "u", models.SyncPut, "")
	require.NoError(t, err)

	n, err := r.DeleteEntry(ctx, 1, rev)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// idempotent: already gone
	n, err = r.DeleteEntry(ctx, 1, rev)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = r.EntryAtRevision(ctx, 1, rev)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

// Concurrent appends for one dictionary must produce distinct, gap-free
// revisions; appends for different dictionaries must not interleave their
// counters.
func TestConcurrentAppendsAreStrictlyOrdered(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepository()

	const callers = 32
	const appendsPerCaller = 25

	var wg sync.WaitGroup
	revisions := make(chan int64, callers*appendsPerCaller)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < appendsPerCaller; j++ {
				rev, err := r.AppendEntry(ctx, 7, "device", "user", models.SyncPut, "")
				assert.NoError(t, err)
				revisions <- rev
				// a second dictionary gets its own counter
				_, err = r.AppendEntry(ctx, 8, "device", "user", models.SyncPut, "")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	close(revisions)

	got := make([]int64, 0, callers*appendsPerCaller)
	for rev := range revisions {
		got = append(got, rev)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	require.Len(t, got, callers*appendsPerCaller)
	for i, rev := range got {
		assert.Equal(t, int64(i+1), rev, "revisions must be distinct and gap-free")
	}
}

func TestIsUniverseNonWidening(t *testing.T) {
	tests := []struct {
		current, previous string
		want              bool
	}{
		{"A=1", "A=1", true},
		{"A=1,B=2", "A=1", true},
		{"B=2", "A=1", false},
		{"A=1", "A=1,B=2", false},
		{"", "", true},
		{"A=1", "", true},
		{"", "A=1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsUniverseNonWidening(tt.current, tt.previous),
			"current=%q previous=%q", tt.current, tt.previous)
	}
}
