package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/events"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/store"
)

// ErrSaveInFlight indicates a save was skipped because one is already
// running for this artifact. Not a failure: the latest spec is picked up by
// the next natural save trigger.
var ErrSaveInFlight = errors.New("auto-save already in flight")

// ErrSaveDebounced indicates a save was skipped because the previous one
// completed too recently. Like ErrSaveInFlight it is a skip, not a failure.
var ErrSaveDebounced = errors.New("auto-save debounced")

// Store is the slice of the persistence client the saver needs.
type Store interface {
	Create(ctx context.Context, a *artifact.Artifact) (*artifact.Artifact, error)
	Update(ctx context.Context, id string, req store.UpdateRequest) (*artifact.Artifact, error)
}

// AutoSaver persists spec changes for one artifact. Create-if-absent, else
// partial update. At most one save is in flight at a time; a save requested
// while one runs is skipped, never queued. Failures are logged and retried
// only on the next trigger, so a down store never causes a retry storm.
type AutoSaver struct {
	store    Store
	hub      *events.Hub
	logger   log.Logger
	inFlight atomic.Bool

	debounce time.Duration
	lastSave atomic.Int64 // unix nanos of the last successful save
}

// NewAutoSaver returns a saver for one artifact's lifetime. hub may be nil.
func NewAutoSaver(s Store, hub *events.Hub, logger log.Logger) *AutoSaver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &AutoSaver{store: s, hub: hub, logger: logger}
}

// SetDebounce sets the minimum interval between successful saves. Zero
// disables debouncing. A failed save never arms the interval, so the next
// trigger retries immediately.
func (s *AutoSaver) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Save persists the snapshot and returns the stored form. Callers pass a
// Clone of the working copy so the store call never races the UI loop's
// mutations, then reconcile the returned id and timestamps back.
//
// Returns ErrSaveInFlight when skipped.
func (s *AutoSaver) Save(ctx context.Context, snapshot *artifact.Artifact) (*artifact.Artifact, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("auto-save skipped, one already in flight", "artifact_id", snapshot.ID)
		return nil, ErrSaveInFlight
	}
	defer s.inFlight.Store(false)

	if s.debounce > 0 {
		if last := s.lastSave.Load(); last != 0 && time.Since(time.Unix(0, last)) < s.debounce {
			s.logger.Debug("auto-save debounced", "artifact_id", snapshot.ID)
			return nil, ErrSaveDebounced
		}
	}

	stored, err := s.save(ctx, snapshot)
	if err != nil {
		s.logger.Warn("auto-save failed", "artifact_id", snapshot.ID, "error", err)
		return nil, err
	}

	s.lastSave.Store(time.Now().UnixNano())
	s.logger.Debug("auto-save completed", "artifact_id", stored.ID)
	if s.hub != nil {
		s.hub.Notify(events.Change{ArtifactID: stored.ID, Kind: "saved"})
	}
	return stored, nil
}

func (s *AutoSaver) save(ctx context.Context, snapshot *artifact.Artifact) (*artifact.Artifact, error) {
	if snapshot.ID == "" {
		stored, err := s.store.Create(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("create: %w", err)
		}
		return stored, nil
	}

	phase := snapshot.EffectivePhase()
	stored, err := s.store.Update(ctx, snapshot.ID, store.UpdateRequest{
		Title:               &snapshot.Title,
		Description:         &snapshot.Description,
		Spec:                &snapshot.Spec,
		Phase:               &phase,
		ConversationHistory: snapshot.History,
	})
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	return stored, nil
}
