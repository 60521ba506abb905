package conversation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/conversation"
	"github.com/maquette-dev/maquette/internal/events"
	"github.com/maquette-dev/maquette/internal/store"
)

// fakeStore records calls. block lets tests hold a save in flight; started
// is closed when the first call reaches the store, so tests can wait for
// the in-flight flag to be held before probing it.
type fakeStore struct {
	mu        sync.Mutex
	creates   int
	updates   int
	block     chan struct{}
	started   chan struct{}
	startOnce sync.Once
	failErr   error
}

func (f *fakeStore) Create(ctx context.Context, a *artifact.Artifact) (*artifact.Artifact, error) {
	f.wait()
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	stored := a.Clone()
	stored.ID = "art-created"
	return stored, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, req store.UpdateRequest) (*artifact.Artifact, error) {
	f.wait()
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &artifact.Artifact{ID: id, Title: deref(req.Title)}, nil
}

func (f *fakeStore) wait() {
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.updates
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestAutoSaver_CreateIfAbsent(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	saver := conversation.NewAutoSaver(fs, nil, nil)

	stored, err := saver.Save(t.Context(), &artifact.Artifact{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "art-created", stored.ID)

	creates, updates := fs.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, updates)
}

func TestAutoSaver_UpdateWhenSaved(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	saver := conversation.NewAutoSaver(fs, nil, nil)

	stored, err := saver.Save(t.Context(), &artifact.Artifact{ID: "art-1", Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "art-1", stored.ID)
	assert.Equal(t, "Renamed", stored.Title)

	creates, updates := fs.counts()
	assert.Equal(t, 0, creates)
	assert.Equal(t, 1, updates)
}

func TestAutoSaver_SkipsConcurrentSave(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{block: make(chan struct{}), started: make(chan struct{})}
	saver := conversation.NewAutoSaver(fs, nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := saver.Save(context.Background(), &artifact.Artifact{ID: "art-1"})
		assert.NoError(t, err)
	}()

	// The store signals once the first save reaches it; the in-flight flag
	// is held until block closes, so the second save must be skipped, not
	// queued.
	<-fs.started
	_, err := saver.Save(context.Background(), &artifact.Artifact{ID: "art-1"})
	assert.ErrorIs(t, err, conversation.ErrSaveInFlight)

	close(fs.block)
	wg.Wait()

	_, updates := fs.counts()
	assert.Equal(t, 1, updates, "the skipped save must not reach the store")
}

func TestAutoSaver_DebounceSkipsRapidSaves(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	saver := conversation.NewAutoSaver(fs, nil, nil)
	saver.SetDebounce(time.Hour)

	_, err := saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	require.NoError(t, err)

	_, err = saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	assert.ErrorIs(t, err, conversation.ErrSaveDebounced)

	_, updates := fs.counts()
	assert.Equal(t, 1, updates, "the debounced save must not reach the store")
}

func TestAutoSaver_DebounceExpires(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	saver := conversation.NewAutoSaver(fs, nil, nil)
	saver.SetDebounce(time.Millisecond)

	_, err := saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	assert.NoError(t, err)

	_, updates := fs.counts()
	assert.Equal(t, 2, updates)
}

func TestAutoSaver_FailedSaveDoesNotArmDebounce(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{failErr: assert.AnError}
	saver := conversation.NewAutoSaver(fs, nil, nil)
	saver.SetDebounce(time.Hour)

	_, err := saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	require.ErrorIs(t, err, assert.AnError)

	// The failure must not suppress the retry on the next trigger.
	fs.failErr = nil
	_, err = saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	assert.NoError(t, err)
}

func TestAutoSaver_FailureIsReturnedNotRetried(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{failErr: assert.AnError}
	saver := conversation.NewAutoSaver(fs, nil, nil)

	_, err := saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	require.ErrorIs(t, err, assert.AnError)

	_, updates := fs.counts()
	assert.Equal(t, 1, updates, "no automatic retry loop")

	// The next natural trigger retries.
	fs.failErr = nil
	_, err = saver.Save(t.Context(), &artifact.Artifact{ID: "art-1"})
	assert.NoError(t, err)
}

func TestAutoSaver_NotifiesHub(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(nil)
	defer hub.Close()
	ch, cancel := hub.Subscribe()
	defer cancel()

	saver := conversation.NewAutoSaver(&fakeStore{}, hub, nil)
	_, err := saver.Save(t.Context(), &artifact.Artifact{Title: "New"})
	require.NoError(t, err)

	change := <-ch
	assert.Equal(t, "art-created", change.ArtifactID)
	assert.Equal(t, "saved", change.Kind)
}
