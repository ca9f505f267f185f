// Package supervisor runs one goroutine per live match, bridging decision
// sources into the engine.
//
// The supervisor owns the only writable reference to a match's state. Every
// mutation flows through decide, append, fold, in that order, so the journal
// and the in-memory state can never disagree. Decision sources are consulted
// concurrently where the rules allow it (discussion, ballots), but their
// answers are committed in seat order to keep replays deterministic.
package supervisor

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/command"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/engine"
	"github.com/louisbranch/avalon.arena/internal/match/projection"
	"github.com/louisbranch/avalon.arena/internal/match/rules"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
	"github.com/louisbranch/avalon.arena/internal/storage"
)

// Config tunes supervisor behavior. Zero values select defaults.
type Config struct {
	// DecisionTimeout bounds each individual seat decision. On expiry the
	// phase's default action is applied and marked as defaulted.
	DecisionTimeout time.Duration
	// Now is the clock, injectable for tests.
	Now func() time.Time
	// ShuffleRoles permutes the role deal. Injectable so tests can fix the
	// assignment; defaults to a uniform shuffle.
	ShuffleRoles func([]domain.Role)
}

const defaultDecisionTimeout = 90 * time.Second

// Supervisor drives one match to completion.
type Supervisor struct {
	cfg     Config
	store   storage.Store
	sources map[int]decision.Source
	tracer  trace.Tracer

	mu    sync.Mutex
	state domain.State

	subMu       sync.Mutex
	subscribers map[*subscriber]struct{}

	abortCh  chan string
	stopOnce sync.Once
	stopped  chan struct{}
}

type subscriber struct {
	observer int
	ch       chan projection.View
}

// New builds a supervisor over an already-created match. The match.created
// event must already be in the journal; state is its fold.
func New(cfg Config, store storage.Store, sources map[int]decision.Source, state domain.State) *Supervisor {
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = defaultDecisionTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ShuffleRoles == nil {
		cfg.ShuffleRoles = func(roles []domain.Role) {
			rand.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })
		}
	}
	return &Supervisor{
		cfg:         cfg,
		store:       store,
		sources:     sources,
		tracer:      otel.Tracer("avalon.arena/supervisor"),
		state:       state,
		subscribers: make(map[*subscriber]struct{}),
		abortCh:     make(chan string, 1),
		stopped:     make(chan struct{}),
	}
}

// MatchID returns the supervised match's id.
func (s *Supervisor) MatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

// View projects the current state for an observer.
func (s *Supervisor) View(observer int) projection.View {
	s.mu.Lock()
	state := s.state.Clone()
	s.mu.Unlock()
	return projection.Project(state, observer)
}

// AuditView projects the current state without redaction: roles and quest
// ballot attribution are visible in any phase. Serving this view to a match
// client would break the fog of war; it exists for audit and debug surfaces.
func (s *Supervisor) AuditView(observer int) projection.View {
	s.mu.Lock()
	state := s.state.Clone()
	s.mu.Unlock()
	return projection.RevealAll(state, observer)
}

// Source returns the decision source for a seat, if one is registered.
// Transports use this to route human submissions.
func (s *Supervisor) Source(seat int) (decision.Source, bool) {
	src, ok := s.sources[seat]
	return src, ok
}

// Abort requests the match be abandoned. Any in-flight decision wait is
// released immediately; the running loop then commits the abandon transition.
func (s *Supervisor) Abort(reason string) {
	select {
	case s.abortCh <- reason:
	default:
	}
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Subscribe registers an observer for filtered snapshots after every commit.
// The returned cancel must be called to release the subscription. Slow
// consumers see the latest snapshot only; intermediate ones are dropped.
func (s *Supervisor) Subscribe(observer int) (<-chan projection.View, func()) {
	sub := &subscriber{observer: observer, ch: make(chan projection.View, 1)}
	s.subMu.Lock()
	s.subscribers[sub] = struct{}{}
	s.subMu.Unlock()

	// Closing under subMu is safe: broadcasts send only while holding it.
	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[sub]; ok {
			delete(s.subscribers, sub)
			close(sub.ch)
		}
		s.subMu.Unlock()
	}
	return sub.ch, cancel
}

func (s *Supervisor) broadcast(state domain.State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subscribers {
		view := projection.Project(state, sub.observer)
		select {
		case sub.ch <- view:
		default:
			// Replace the stale snapshot for slow consumers.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- view:
			default:
			}
		}
	}
}

// Run drives the match until a terminal phase. A context cancellation or an
// internal consistency violation abandons the match before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	matchID := s.MatchID()
	ctx, span := s.tracer.Start(ctx, "match.run",
		trace.WithAttributes(attribute.String("match.id", matchID)))
	defer span.End()

	// Aborting cancels this context so a blocked source does not hold the
	// loop until the decision timeout.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if reason, aborted := s.pendingAbort(ctx); aborted {
			return s.abort(reason)
		}

		s.mu.Lock()
		phase := s.state.Phase
		s.mu.Unlock()

		var err error
		switch phase {
		case domain.PhaseRoleAssignment:
			err = s.runStart(ctx)
		case domain.PhaseTeamSelection:
			err = s.runTeamSelection(ctx)
		case domain.PhaseDiscussion:
			err = s.runDiscussion(ctx)
		case domain.PhaseTeamVote:
			err = s.runTeamVote(ctx)
		case domain.PhaseQuestExecution:
			err = s.runQuestExecution(ctx)
		case domain.PhaseAssassinationDiscussion:
			err = s.runAssassinationDiscussion(ctx)
		case domain.PhaseAssassination:
			err = s.runAssassination(ctx)
		case domain.PhaseGameOver:
			return nil
		default:
			err = apperrors.WithMetadata(apperrors.CodeMatchConsistencyBroken,
				"unknown phase", map[string]string{"phase": string(phase)})
		}
		if err != nil {
			if reason, aborted := s.pendingAbort(ctx); aborted {
				return s.abort(reason)
			}
			log.Printf("match %s: phase %s failed: %v", matchID, phase, err)
			return s.abort("internal consistency violation")
		}
	}
}

func (s *Supervisor) pendingAbort(ctx context.Context) (string, bool) {
	select {
	case reason := <-s.abortCh:
		return reason, true
	default:
	}
	if ctx.Err() != nil {
		return "supervisor stopped", true
	}
	return "", false
}

// abort commits the abandon transition using a fresh context so shutdown
// still journals the terminal events.
func (s *Supervisor) abort(reason string) error {
	s.mu.Lock()
	terminal := s.state.Phase.Terminal()
	s.mu.Unlock()
	if terminal {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd, err := command.New(command.TypeAbort, s.MatchID(), -1, command.AbortPayload{Reason: reason})
	if err != nil {
		return err
	}
	return s.commit(ctx, cmd)
}

// commit runs one command through decide, append, fold and notifies
// subscribers. A rejection of an internally-synthesized command means state
// and decider disagree, which is a consistency violation.
func (s *Supervisor) commit(ctx context.Context, cmd command.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	decided := engine.Decide(s.state, cmd, s.cfg.Now)
	if decided.Rejected() {
		rej := decided.Rejections[0]
		return apperrors.WithMetadata(apperrors.CodeMatchConsistencyBroken,
			"internal command rejected",
			map[string]string{"command": string(cmd.Type), "code": rej.Code, "message": rej.Message})
	}

	stored, err := s.store.AppendEvents(ctx, s.state.ID, decided.Events)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeMatchConsistencyBroken, "journal append failed", err)
	}
	state := s.state
	for _, evt := range stored {
		state, err = engine.Fold(state, evt)
		if err != nil {
			return err
		}
	}
	s.state = state

	if err := s.store.PutMatch(ctx, storage.MatchRecord{
		ID:          state.ID,
		PlayerCount: state.PlayerCount,
		Phase:       state.Phase,
		Outcome:     state.Outcome,
		Winner:      state.Winner,
		CreatedAt:   state.CreatedAt,
		UpdatedAt:   s.cfg.Now().UTC(),
	}); err != nil {
		log.Printf("match %s: update record: %v", state.ID, err)
	}

	s.broadcast(state.Clone())
	return nil
}

// ask consults a seat's decision source with the phase timeout. Source
// failure or timeout falls back to the provided default, marked as such.
func (s *Supervisor) ask(ctx context.Context, seat int, req decision.Request, fallback decision.Action) (decision.Action, bool) {
	ctx, span := s.tracer.Start(ctx, "match.decision",
		trace.WithAttributes(
			attribute.String("match.id", req.MatchID),
			attribute.String("decision.kind", string(req.Kind)),
			attribute.Int("decision.seat", seat),
		))
	defer span.End()

	source, ok := s.sources[seat]
	if !ok {
		return fallback, true
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DecisionTimeout)
	defer cancel()

	action, err := source.Decide(ctx, req)
	if err != nil {
		log.Printf("match %s: seat %d %s defaulted: %v", req.MatchID, seat, req.Kind, err)
		span.SetAttributes(attribute.Bool("decision.defaulted", true))
		return fallback, true
	}
	return action, false
}

func (s *Supervisor) request(kind decision.Kind, seat int, teamSize int) decision.Request {
	return decision.Request{
		Kind:     kind,
		MatchID:  s.MatchID(),
		Seat:     seat,
		View:     s.View(seat),
		TeamSize: teamSize,
	}
}

func (s *Supervisor) runStart(ctx context.Context) error {
	s.mu.Lock()
	playerCount := s.state.PlayerCount
	matchID := s.state.ID
	s.mu.Unlock()

	table, err := rules.ForPlayerCount(playerCount)
	if err != nil {
		return err
	}
	roles := table.Roles()
	s.cfg.ShuffleRoles(roles)

	order := make([]string, len(roles))
	for i, role := range roles {
		order[i] = string(role)
	}
	cmd, err := command.New(command.TypeStart, matchID, -1, command.StartPayload{RoleOrder: order})
	if err != nil {
		return err
	}
	return s.commit(ctx, cmd)
}

func (s *Supervisor) runTeamSelection(ctx context.Context) error {
	s.mu.Lock()
	leader := s.state.Leader
	round := s.state.Round
	playerCount := s.state.PlayerCount
	matchID := s.state.ID
	s.mu.Unlock()

	table, err := rules.ForPlayerCount(playerCount)
	if err != nil {
		return err
	}
	size := table.TeamSize(round)

	// The default proposal is the lowest seats, which is always legal.
	fallback := decision.Action{Team: make([]int, size)}
	for i := range fallback.Team {
		fallback.Team[i] = i
	}

	action, defaulted := s.ask(ctx, leader, s.request(decision.KindProposeTeam, leader, size), fallback)
	cmd, err := command.New(command.TypeProposeTeam, matchID, leader, command.ProposeTeamPayload{
		Team:      action.Team,
		Statement: action.Statement,
	})
	if err != nil {
		return err
	}
	cmd.Defaulted = defaulted
	if err := s.commit(ctx, cmd); err != nil {
		if !defaulted && apperrors.Is(err, apperrors.CodeMatchConsistencyBroken) {
			// An invalid source proposal is retried once as the default, not
			// treated as a broken match.
			return s.commitProposal(ctx, matchID, leader, fallback)
		}
		return err
	}
	return nil
}

func (s *Supervisor) commitProposal(ctx context.Context, matchID string, leader int, action decision.Action) error {
	cmd, err := command.New(command.TypeProposeTeam, matchID, leader, command.ProposeTeamPayload{Team: action.Team})
	if err != nil {
		return err
	}
	cmd.Defaulted = true
	return s.commit(ctx, cmd)
}

// collect asks each listed seat concurrently and returns answers indexed by
// seat. Commit order stays deterministic because callers iterate seats in
// order afterward.
func (s *Supervisor) collect(ctx context.Context, seats []int, kind decision.Kind, fallback decision.Action) map[int]collected {
	results := make([]collected, len(seats))
	var wg sync.WaitGroup
	for i, seat := range seats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			action, defaulted := s.ask(ctx, seat, s.request(kind, seat, 0), fallback)
			results[i] = collected{action: action, defaulted: defaulted}
		}()
	}
	wg.Wait()

	out := make(map[int]collected, len(seats))
	for i, seat := range seats {
		out[seat] = results[i]
	}
	return out
}

type collected struct {
	action    decision.Action
	defaulted bool
}

func (s *Supervisor) runDiscussion(ctx context.Context) error {
	s.mu.Lock()
	matchID := s.state.ID
	leader := s.state.Leader
	seats := make([]int, 0, s.state.PlayerCount)
	for _, p := range s.state.Players {
		if p.Seat != leader {
			seats = append(seats, p.Seat)
		}
	}
	s.mu.Unlock()

	// The leader already spoke with the proposal; everyone else gets one
	// statement. Passing is the default.
	answers := s.collect(ctx, seats, decision.KindStatement, decision.Action{})
	for _, seat := range seats {
		answer := answers[seat]
		if answer.action.Statement == "" {
			continue
		}
		cmd, err := command.New(command.TypeStatement, matchID, seat, command.StatementPayload{
			Content: answer.action.Statement,
		})
		if err != nil {
			return err
		}
		cmd.Defaulted = answer.defaulted
		if err := s.commit(ctx, cmd); err != nil {
			log.Printf("match %s: seat %d statement dropped: %v", matchID, seat, err)
		}
	}

	closeCmd, err := command.New(command.TypeCloseDiscussion, matchID, -1, nil)
	if err != nil {
		return err
	}
	return s.commit(ctx, closeCmd)
}

func (s *Supervisor) runTeamVote(ctx context.Context) error {
	s.mu.Lock()
	matchID := s.state.ID
	seats := make([]int, 0, s.state.PlayerCount)
	for _, p := range s.state.Players {
		seats = append(seats, p.Seat)
	}
	s.mu.Unlock()

	// A missing ballot counts as reject.
	answers := s.collect(ctx, seats, decision.KindTeamVote, decision.Action{Approve: false})
	for _, seat := range seats {
		answer := answers[seat]
		cmd, err := command.New(command.TypeCastVote, matchID, seat, command.CastVotePayload{
			Approve: answer.action.Approve,
		})
		if err != nil {
			return err
		}
		cmd.Defaulted = answer.defaulted
		if err := s.commit(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) runQuestExecution(ctx context.Context) error {
	s.mu.Lock()
	matchID := s.state.ID
	team := append([]int(nil), s.state.ProposedTeam...)
	evil := make(map[int]bool)
	for _, p := range s.state.Players {
		if p.Role.IsEvil() {
			evil[p.Seat] = true
		}
	}
	s.mu.Unlock()

	// A missing quest ballot counts as success, which is also the only legal
	// answer for good seats.
	answers := s.collect(ctx, team, decision.KindQuestVote, decision.Action{Success: true})
	for _, seat := range team {
		answer := answers[seat]
		success := answer.action.Success
		if !evil[seat] {
			success = true
		}
		cmd, err := command.New(command.TypeCastQuestVote, matchID, seat, command.CastQuestVotePayload{
			Success: success,
		})
		if err != nil {
			return err
		}
		cmd.Defaulted = answer.defaulted
		if err := s.commit(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) runAssassinationDiscussion(ctx context.Context) error {
	s.mu.Lock()
	matchID := s.state.ID
	evil := s.state.EvilSeats()
	s.mu.Unlock()

	answers := s.collect(ctx, evil, decision.KindEvilStatement, decision.Action{})
	for _, seat := range evil {
		answer := answers[seat]
		if answer.action.Statement == "" {
			continue
		}
		cmd, err := command.New(command.TypeEvilStatement, matchID, seat, command.StatementPayload{
			Content: answer.action.Statement,
		})
		if err != nil {
			return err
		}
		cmd.Defaulted = answer.defaulted
		if err := s.commit(ctx, cmd); err != nil {
			log.Printf("match %s: seat %d evil statement dropped: %v", matchID, seat, err)
		}
	}

	closeCmd, err := command.New(command.TypeCloseEvilDiscussion, matchID, -1, nil)
	if err != nil {
		return err
	}
	return s.commit(ctx, closeCmd)
}

func (s *Supervisor) runAssassination(ctx context.Context) error {
	s.mu.Lock()
	matchID := s.state.ID
	assassin := s.state.AssassinSeat()
	fallbackTarget := -1
	for _, p := range s.state.Players {
		if p.Seat != assassin {
			fallbackTarget = p.Seat
			break
		}
	}
	s.mu.Unlock()

	action, defaulted := s.ask(ctx, assassin,
		s.request(decision.KindAssassinate, assassin, 0),
		decision.Action{Target: fallbackTarget})

	cmd, err := command.New(command.TypeAssassinate, matchID, assassin, command.AssassinatePayload{
		Target: action.Target,
	})
	if err != nil {
		return err
	}
	cmd.Defaulted = defaulted
	if err := s.commit(ctx, cmd); err != nil {
		if !defaulted {
			// An invalid source target falls back to the default pick.
			fallbackCmd, buildErr := command.New(command.TypeAssassinate, matchID, assassin,
				command.AssassinatePayload{Target: fallbackTarget})
			if buildErr != nil {
				return buildErr
			}
			fallbackCmd.Defaulted = true
			return s.commit(ctx, fallbackCmd)
		}
		return err
	}
	return nil
}
