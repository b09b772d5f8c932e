package interceptor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/goliatone/go-cacheable/pkg/testsupport"
)

type user struct {
	ID   string
	Name string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, caches []cache.SyncCache, opts ...Option) *Dispatcher {
	t.Helper()

	m, err := cache.NewManager(caches...)
	if err != nil {
		t.Fatalf("failed to build manager: %v", err)
	}
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	d := NewDispatcher(m, opts...)
	t.Cleanup(func() {
		_ = d.Close(context.Background())
	})
	return d
}

// recordingCaches returns caches sharing one journal.
func recordingCaches(names ...string) ([]*testsupport.RecordingCache, []cache.SyncCache) {
	journal := &testsupport.Journal{}
	recs := make([]*testsupport.RecordingCache, len(names))
	syncs := make([]cache.SyncCache, len(names))
	for i, name := range names {
		recs[i] = testsupport.NewRecordingCache(name, journal)
		syncs[i] = recs[i]
	}
	return recs, syncs
}

// countingUserLoader returns a loader building a user from its first argument.
func countingUserLoader(calls *atomic.Int32) Func[*user] {
	return func(_ context.Context, args ...any) (*user, error) {
		calls.Add(1)
		id := args[0].(string)
		return &user{ID: id, Name: "user-" + id}, nil
	}
}

func recoverPolicy() cache.ErrorPolicy {
	return cache.NewRecoverPolicy(discardLogger())
}
