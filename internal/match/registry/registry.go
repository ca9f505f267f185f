// Package registry tracks live matches and rebuilds them from the journal.
package registry

import (
	"context"
	"log"
	"sync"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/engine"
	"github.com/louisbranch/avalon.arena/internal/match/supervisor"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
	"github.com/louisbranch/avalon.arena/internal/storage"
)

// SourceFactory builds the decision source for one seat. The registry calls
// it for every seat at match creation and again on restore.
type SourceFactory func(player domain.Player) decision.Source

// Registry owns the supervisors for every live match. Matches are only ever
// added; a finished match's supervisor stays resolvable so late observers can
// fetch the terminal snapshot.
type Registry struct {
	store   storage.Store
	cfg     supervisor.Config
	factory SourceFactory

	mu          sync.RWMutex
	supervisors map[string]*supervisor.Supervisor

	wg sync.WaitGroup
}

// New builds an empty registry.
func New(store storage.Store, cfg supervisor.Config, factory SourceFactory) *Registry {
	return &Registry{
		store:       store,
		cfg:         cfg,
		factory:     factory,
		supervisors: make(map[string]*supervisor.Supervisor),
	}
}

// Create validates input, journals the new match, and starts its supervisor.
func (r *Registry) Create(ctx context.Context, input engine.CreateInput) (*supervisor.Supervisor, error) {
	state, events, err := engine.NewMatch(input, r.cfg.Now, nil)
	if err != nil {
		return nil, err
	}

	stored, err := r.store.AppendEvents(ctx, state.ID, events)
	if err != nil {
		return nil, err
	}
	state, err = engine.Replay(stored)
	if err != nil {
		return nil, err
	}

	if err := r.store.PutMatch(ctx, storage.MatchRecord{
		ID:          state.ID,
		PlayerCount: state.PlayerCount,
		Phase:       state.Phase,
		Outcome:     state.Outcome,
		CreatedAt:   state.CreatedAt,
		UpdatedAt:   state.CreatedAt,
	}); err != nil {
		return nil, err
	}

	return r.launch(state), nil
}

// Get returns the supervisor for a match id.
func (r *Registry) Get(id string) (*supervisor.Supervisor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sup, ok := r.supervisors[id]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "match not found",
			map[string]string{"match_id": id})
	}
	return sup, nil
}

// List returns the indexed match records.
func (r *Registry) List(ctx context.Context) ([]storage.MatchRecord, error) {
	return r.store.ListMatches(ctx)
}

// Restore replays every journaled match and resumes supervisors for the
// non-terminal ones. Terminal matches are registered without a running loop
// so their snapshots stay observable.
func (r *Registry) Restore(ctx context.Context) error {
	ids, err := r.store.ListMatchIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		events, err := r.store.ListEvents(ctx, id, 0, 0)
		if err != nil {
			return err
		}
		state, err := engine.Replay(events)
		if err != nil {
			log.Printf("match %s: journal replay failed, skipping: %v", id, err)
			continue
		}
		if state.Phase.Terminal() {
			r.register(state)
			continue
		}
		r.launch(state)
		log.Printf("match %s: resumed in phase %s", id, state.Phase)
	}
	return nil
}

// Shutdown aborts every live match and waits for the loops to drain.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	for _, sup := range r.supervisors {
		sup.Abort("server shutdown")
	}
	r.mu.RUnlock()
	r.wg.Wait()
}

func (r *Registry) sources(state domain.State) map[int]decision.Source {
	sources := make(map[int]decision.Source, len(state.Players))
	for _, player := range state.Players {
		if source := r.factory(player); source != nil {
			sources[player.Seat] = source
		}
	}
	return sources
}

func (r *Registry) register(state domain.State) *supervisor.Supervisor {
	sup := supervisor.New(r.cfg, r.store, r.sources(state), state)
	r.mu.Lock()
	r.supervisors[state.ID] = sup
	r.mu.Unlock()
	return sup
}

func (r *Registry) launch(state domain.State) *supervisor.Supervisor {
	sup := r.register(state)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := sup.Run(context.Background()); err != nil {
			log.Printf("match %s: supervisor exited: %v", sup.MatchID(), err)
		}
	}()
	return sup
}
