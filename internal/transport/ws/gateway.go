// Package ws is the websocket gateway for match participation.
//
// Clients speak a small JSON protocol: create or join a match, receive
// filtered snapshots as the match progresses, and answer open decisions for
// their seat. Every snapshot a client sees went through the observer
// projection, so the connection layer can never widen a seat's knowledge.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/engine"
	"github.com/louisbranch/avalon.arena/internal/match/projection"
	"github.com/louisbranch/avalon.arena/internal/match/registry"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
	"github.com/louisbranch/avalon.arena/internal/platform/id"
)

// Msg is the wire envelope in both directions.
type Msg struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

type createMatchPayload struct {
	PlayerCount int `json:"player_count"`
	Seats       []struct {
		Seat     int    `json:"seat"`
		Name     string `json:"name"`
		Human    bool   `json:"human"`
		Provider string `json:"provider"`
	} `json:"seats"`
}

type joinPayload struct {
	MatchID string `json:"match_id"`
	// Seat is the observer seat; -1 joins as a spectator.
	Seat int `json:"seat"`
}

type actionPayload struct {
	MatchID string          `json:"match_id"`
	Seat    int             `json:"seat"`
	Kind    decision.Kind   `json:"kind"`
	Action  decision.Action `json:"action"`
}

// Gateway serves websocket clients over a match registry.
type Gateway struct {
	registry     *registry.Registry
	allowOrigins map[string]bool

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	id   string
	send chan []byte

	mu      sync.Mutex
	cancels []func()
}

// NewGateway builds a gateway. allowOrigins lists acceptable Origin headers;
// empty means same-origin only, per the websocket library default.
func NewGateway(reg *registry.Registry, allowOrigins []string) *Gateway {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, origin := range allowOrigins {
		if origin != "" {
			allowed[origin] = true
		}
	}
	return &Gateway{
		registry:     reg,
		allowOrigins: allowed,
		clients:      make(map[*client]struct{}),
	}
}

// ServeWS upgrades the connection and runs the client's read loop.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && len(g.allowOrigins) > 0 && !g.allowOrigins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: len(g.allowOrigins) > 0,
	})
	if err != nil {
		return
	}

	clientID, err := id.NewID()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "id generation failed")
		return
	}
	c := &client{id: clientID, send: make(chan []byte, 64)}

	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()
	log.Printf("ws client %s connected", c.id)

	ctx := r.Context()

	// writer
	go func() {
		ping := time.NewTicker(15 * time.Second)
		defer func() {
			ping.Stop()
			conn.Close(websocket.StatusNormalClosure, "bye")
		}()
		for {
			select {
			case msg, ok := <-c.send:
				if !ok {
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					return
				}
			}
		}
	}()

	// reader
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		g.handle(ctx, c, msg)
	}

	g.disconnect(c)
}

func (g *Gateway) disconnect(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()

	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	// The writer goroutine exits on its own once the connection context ends;
	// the send channel stays open so late snapshot forwards cannot panic.
	log.Printf("ws client %s disconnected", c.id)
}

func (g *Gateway) handle(ctx context.Context, c *client, msg Msg) {
	switch msg.T {
	case "create_match":
		g.handleCreate(ctx, c, msg.M)
	case "join":
		g.handleJoin(c, msg.M)
	case "action":
		g.handleAction(c, msg.M)
	case "list_matches":
		g.handleList(ctx, c)
	case "pong":
	default:
		g.sendError(c, apperrors.New(apperrors.CodePhaseDisallowsOp, "unknown message type"))
	}
}

func (g *Gateway) handleCreate(ctx context.Context, c *client, raw json.RawMessage) {
	var payload createMatchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.sendError(c, apperrors.Wrap(apperrors.CodeMatchSeatsInvalid, "malformed create payload", err))
		return
	}

	input := engine.CreateInput{PlayerCount: payload.PlayerCount}
	for _, seat := range payload.Seats {
		input.Seats = append(input.Seats, engine.SeatConfig{
			Seat:     seat.Seat,
			Name:     seat.Name,
			Human:    seat.Human,
			Provider: seat.Provider,
		})
	}

	sup, err := g.registry.Create(ctx, input)
	if err != nil {
		g.sendError(c, err)
		return
	}
	g.sendTo(c, "created", map[string]any{"match_id": sup.MatchID()})
}

func (g *Gateway) handleJoin(c *client, raw json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.sendError(c, apperrors.Wrap(apperrors.CodeNotFound, "malformed join payload", err))
		return
	}

	sup, err := g.registry.Get(payload.MatchID)
	if err != nil {
		g.sendError(c, err)
		return
	}

	views, cancel := sup.Subscribe(payload.Seat)
	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	// Immediate snapshot, then one per commit until the subscription is
	// cancelled on disconnect.
	g.sendView(c, sup.View(payload.Seat))
	go func() {
		for view := range views {
			g.sendView(c, view)
		}
	}()

	// Re-prompt an open decision on reconnect.
	if source, ok := sup.Source(payload.Seat); ok {
		if human, ok := source.(*decision.HumanSource); ok {
			if req, pending := human.Pending(); pending {
				g.sendTo(c, "decision", map[string]any{
					"match_id":  req.MatchID,
					"seat":      req.Seat,
					"kind":      req.Kind,
					"team_size": req.TeamSize,
					"view":      req.View,
				})
			}
		}
	}
}

func (g *Gateway) handleAction(c *client, raw json.RawMessage) {
	var payload actionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.sendError(c, apperrors.Wrap(apperrors.CodeActionSeatInvalid, "malformed action payload", err))
		return
	}

	sup, err := g.registry.Get(payload.MatchID)
	if err != nil {
		g.sendError(c, err)
		return
	}
	source, ok := sup.Source(payload.Seat)
	if !ok {
		g.sendError(c, apperrors.New(apperrors.CodeActionSeatInvalid, "no source for seat"))
		return
	}
	human, ok := source.(*decision.HumanSource)
	if !ok {
		g.sendError(c, apperrors.New(apperrors.CodeActionSeatInvalid, "seat is not human-driven"))
		return
	}
	if err := human.Submit(payload.Kind, payload.Action); err != nil {
		g.sendError(c, err)
		return
	}
	g.sendTo(c, "accepted", map[string]any{"match_id": payload.MatchID, "seat": payload.Seat})
}

func (g *Gateway) handleList(ctx context.Context, c *client) {
	records, err := g.registry.List(ctx)
	if err != nil {
		g.sendError(c, err)
		return
	}
	list := make([]map[string]any, 0, len(records))
	for _, record := range records {
		list = append(list, map[string]any{
			"match_id":     record.ID,
			"player_count": record.PlayerCount,
			"phase":        record.Phase,
			"outcome":      record.Outcome,
			"winner":       record.Winner,
		})
	}
	g.sendTo(c, "matches", map[string]any{"list": list})
}

func (g *Gateway) sendView(c *client, view projection.View) {
	g.sendTo(c, "state", view)
}

func (g *Gateway) sendTo(c *client, msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws client %s: marshal %s: %v", c.id, msgType, err)
		return
	}
	data, err := json.Marshal(Msg{T: msgType, M: raw})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// sendError reports err with both the domain code and its gRPC status code,
// so clients shared with the gRPC surface classify failures the same way.
func (g *Gateway) sendError(c *client, err error) {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = apperrors.CodeMatchConsistencyBroken
	}
	g.sendTo(c, "error", map[string]any{
		"code":      code,
		"grpc_code": code.GRPCCode().String(),
		"message":   err.Error(),
	})
}
