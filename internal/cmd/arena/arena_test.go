package arena

import (
	"context"
	"encoding/json"
	"flag"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/engine"
	"github.com/louisbranch/avalon.arena/internal/match/projection"
	"github.com/louisbranch/avalon.arena/internal/match/registry"
	"github.com/louisbranch/avalon.arena/internal/match/supervisor"
	"github.com/louisbranch/avalon.arena/internal/storage/memory"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Addr != "" {
		t.Fatalf("expected empty addr, got %q", cfg.Addr)
	}
	if cfg.DecisionTimeout != 90*time.Second {
		t.Fatalf("expected 90s decision timeout, got %s", cfg.DecisionTimeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9001", "-addr", "127.0.0.1:9999", "-db", "arena.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "arena.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
}

func TestSourceFactorySeatKinds(t *testing.T) {
	factory := sourceFactory(Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"})

	if factory(domain.Player{Seat: 0, Human: true}) == nil {
		t.Fatal("human seat needs an interactive source")
	}
	if factory(domain.Player{Seat: 1, Provider: "openai"}) == nil {
		t.Fatal("openai seat needs an llm source")
	}
	if factory(domain.Player{Seat: 2, Provider: "scripted"}) != nil {
		t.Fatal("unknown provider seats rely on supervisor defaulting")
	}

	// Without credentials, provider seats also default.
	bare := sourceFactory(Config{})
	if bare(domain.Player{Seat: 1, Provider: "openai"}) != nil {
		t.Fatal("openai seat without credentials must fall back to defaulting")
	}
}

func TestDebugMatchHandler(t *testing.T) {
	reg := registry.New(memory.NewStore(), supervisor.Config{DecisionTimeout: time.Second},
		func(domain.Player) decision.Source { return nil })
	t.Cleanup(reg.Shutdown)

	input := engine.CreateInput{PlayerCount: 5}
	for i := 0; i < 5; i++ {
		input.Seats = append(input.Seats, engine.SeatConfig{
			Seat: i, Name: "p" + string(rune('0'+i)), Provider: "scripted",
		})
	}
	sup, err := reg.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler := debugMatchHandler(reg)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/debug/match?id="+sup.MatchID(), nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view projection.View
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.MatchID != sup.MatchID() {
		t.Fatalf("unexpected view: %+v", view)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/debug/match?id=missing", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 for unknown match, got %d", rec.Code)
	}
}
