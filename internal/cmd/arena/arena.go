// Package arena parses arena command flags and starts the match server.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/decision/llm"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/projection"
	"github.com/louisbranch/avalon.arena/internal/match/registry"
	"github.com/louisbranch/avalon.arena/internal/match/supervisor"
	"github.com/louisbranch/avalon.arena/internal/platform/config"
	"github.com/louisbranch/avalon.arena/internal/platform/otel"
	"github.com/louisbranch/avalon.arena/internal/storage"
	"github.com/louisbranch/avalon.arena/internal/storage/memory"
	"github.com/louisbranch/avalon.arena/internal/storage/sqlite"
	"github.com/louisbranch/avalon.arena/internal/transport/ws"
)

const serviceName = "arena"

const otelShutdownTimeout = 5 * time.Second

// Config holds arena command configuration.
type Config struct {
	Port int    `env:"AVALON_ARENA_PORT" envDefault:"8080"`
	Addr string `env:"AVALON_ARENA_ADDR"`

	// DBPath selects the sqlite journal file. Empty keeps matches in memory.
	DBPath string `env:"AVALON_ARENA_DB"`

	DecisionTimeout time.Duration `env:"AVALON_ARENA_DECISION_TIMEOUT" envDefault:"90s"`

	OpenAIAPIKey string `env:"AVALON_ARENA_OPENAI_API_KEY"`
	OpenAIModel  string `env:"AVALON_ARENA_OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// AllowedOrigins lists browser origins accepted by the websocket gateway.
	AllowedOrigins []string `env:"AVALON_ARENA_ALLOWED_ORIGINS" envSeparator:","`

	// Debug exposes /debug/match, an unredacted match view with roles and
	// quest ballot attribution. Never enable it where players can reach it.
	Debug bool `env:"AVALON_ARENA_DEBUG"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The arena server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The arena server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The sqlite journal path (empty for in-memory)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Expose the unredacted /debug/match view")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the arena match server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", serviceName, err)
		}
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New(store, supervisor.Config{
		DecisionTimeout: cfg.DecisionTimeout,
	}, sourceFactory(cfg))
	if err := reg.Restore(ctx); err != nil {
		return err
	}

	gateway := ws.NewGateway(reg, cfg.AllowedOrigins)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Debug {
		log.Printf("debug match view enabled")
		mux.HandleFunc("/debug/match", debugMatchHandler(reg))
	}

	addr := cfg.Addr
	if addr == "" {
		addr = ":" + strconv.Itoa(cfg.Port)
	}
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("arena listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			reg.Shutdown()
			return err
		}
	}

	reg.Shutdown()
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(closeCtx)
}

// sourceFactory maps seats to decision sources. Human seats get an
// interactive source the websocket gateway can submit into; provider seats
// get an LLM-backed source when credentials exist and otherwise fall back to
// the supervisor's defaulting timeouts.
func sourceFactory(cfg Config) registry.SourceFactory {
	return func(player domain.Player) decision.Source {
		if player.Human {
			return decision.NewHumanSource()
		}
		if strings.EqualFold(player.Provider, "openai") && cfg.OpenAIAPIKey != "" {
			invoker := llm.NewOpenAIInvoker(llm.OpenAIConfig{
				APIKey: cfg.OpenAIAPIKey,
				Model:  cfg.OpenAIModel,
			})
			return llm.NewSource(invoker, -1)
		}
		return nil
	}
}

// debugMatchHandler serves the unredacted view of one match by id.
func debugMatchHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sup, err := reg.Get(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sup.AuditView(projection.Spectator)); err != nil {
			log.Printf("debug match view: %v", err)
		}
	}
}

func openStore(cfg Config) (storage.Store, func(), error) {
	if cfg.DBPath == "" {
		log.Printf("no journal path configured, matches are kept in memory")
		return memory.NewStore(), func() {}, nil
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("close journal: %v", err)
		}
	}, nil
}
