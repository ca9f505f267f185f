package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"nhooyr.io/websocket"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/registry"
	"github.com/louisbranch/avalon.arena/internal/match/supervisor"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
	"github.com/louisbranch/avalon.arena/internal/storage/memory"
)

type autoSource struct{}

func (autoSource) Decide(_ context.Context, req decision.Request) (decision.Action, error) {
	switch req.Kind {
	case decision.KindProposeTeam:
		team := make([]int, req.TeamSize)
		for i := range team {
			team[i] = i
		}
		return decision.Action{Team: team}, nil
	case decision.KindTeamVote:
		return decision.Action{Approve: true}, nil
	case decision.KindQuestVote:
		return decision.Action{Success: true}, nil
	case decision.KindAssassinate:
		return decision.Action{Target: 1}, nil
	}
	return decision.Action{}, nil
}

func testGateway(t *testing.T) (*Gateway, *registry.Registry) {
	t.Helper()
	store := memory.NewStore()
	reg := registry.New(store, supervisor.Config{DecisionTimeout: time.Second},
		func(domain.Player) decision.Source { return autoSource{} })
	t.Cleanup(reg.Shutdown)
	return NewGateway(reg, nil), reg
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(Msg{T: msgType, M: raw})
	if err != nil {
		t.Fatalf("marshal msg: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// recv reads messages until one of msgType arrives.
func recv(t *testing.T, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", msgType, err)
		}
		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.T == "error" {
			t.Fatalf("gateway error while waiting for %q: %s", msgType, msg.M)
		}
		if msg.T == msgType {
			return msg.M
		}
	}
}

func createPayload() map[string]any {
	seats := make([]map[string]any, 5)
	for i := range seats {
		seats[i] = map[string]any{
			"seat": i, "name": "p" + string(rune('0'+i)), "provider": "scripted",
		}
	}
	return map[string]any{"player_count": 5, "seats": seats}
}

func TestCreateJoinAndObserve(t *testing.T) {
	gateway, _ := testGateway(t)
	server := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	defer server.Close()

	conn := dial(t, "ws"+server.URL[len("http"):])

	send(t, conn, "create_match", createPayload())
	created := recv(t, conn, "created")
	var createdPayload struct {
		MatchID string `json:"match_id"`
	}
	if err := json.Unmarshal(created, &createdPayload); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if createdPayload.MatchID == "" {
		t.Fatal("created response missing match id")
	}

	send(t, conn, "join", map[string]any{"match_id": createdPayload.MatchID, "seat": -1})
	state := recv(t, conn, "state")
	var view struct {
		MatchID  string `json:"match_id"`
		Observer int    `json:"observer"`
		Players  []struct {
			Role string `json:"role,omitempty"`
		} `json:"players"`
		Phase string `json:"phase"`
	}
	if err := json.Unmarshal(state, &view); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if view.MatchID != createdPayload.MatchID || view.Observer != -1 {
		t.Fatalf("unexpected snapshot: %+v", view)
	}
	// A spectator snapshot mid-match never carries roles.
	if view.Phase != string(domain.PhaseGameOver) {
		for _, p := range view.Players {
			if p.Role != "" {
				t.Fatalf("spectator snapshot leaks a role: %+v", view)
			}
		}
	}

	send(t, conn, "list_matches", nil)
	matches := recv(t, conn, "matches")
	var listPayload struct {
		List []struct {
			MatchID string `json:"match_id"`
		} `json:"list"`
	}
	if err := json.Unmarshal(matches, &listPayload); err != nil {
		t.Fatalf("unmarshal matches: %v", err)
	}
	if len(listPayload.List) != 1 || listPayload.List[0].MatchID != createdPayload.MatchID {
		t.Fatalf("expected the created match in listing, got %+v", listPayload)
	}
}

func TestActionRequiresHumanSeat(t *testing.T) {
	gateway, _ := testGateway(t)
	server := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	defer server.Close()

	conn := dial(t, "ws"+server.URL[len("http"):])

	send(t, conn, "create_match", createPayload())
	created := recv(t, conn, "created")
	var createdPayload struct {
		MatchID string `json:"match_id"`
	}
	if err := json.Unmarshal(created, &createdPayload); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}

	// Every seat is provider-driven, so submissions are refused.
	send(t, conn, "action", map[string]any{
		"match_id": createdPayload.MatchID,
		"seat":     0,
		"kind":     "team_vote",
		"action":   map[string]any{"approve": true},
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.T == "error" {
			return
		}
		if msg.T == "accepted" {
			t.Fatal("action on a provider seat must be refused")
		}
	}
}

func TestUnknownMatchErrors(t *testing.T) {
	gateway, _ := testGateway(t)
	server := httptest.NewServer(http.HandlerFunc(gateway.ServeWS))
	defer server.Close()

	conn := dial(t, "ws"+server.URL[len("http"):])
	send(t, conn, "join", map[string]any{"match_id": "missing", "seat": -1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.T != "error" {
		t.Fatalf("expected error for unknown match, got %q", msg.T)
	}

	var errPayload struct {
		Code     string `json:"code"`
		GRPCCode string `json:"grpc_code"`
	}
	if err := json.Unmarshal(msg.M, &errPayload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if errPayload.Code != string(apperrors.CodeNotFound) {
		t.Fatalf("expected %s, got %q", apperrors.CodeNotFound, errPayload.Code)
	}
	if errPayload.GRPCCode != codes.NotFound.String() {
		t.Fatalf("expected grpc code %s, got %q", codes.NotFound, errPayload.GRPCCode)
	}
}
