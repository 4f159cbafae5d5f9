package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/memodash/memodash/internal/assistant"
	"github.com/memodash/memodash/internal/capability"
	"github.com/memodash/memodash/internal/config"
	"github.com/memodash/memodash/internal/identity"
	"github.com/memodash/memodash/internal/intent"
	"github.com/memodash/memodash/internal/localtools"
	"github.com/memodash/memodash/internal/metrics"
	"github.com/memodash/memodash/internal/planner"
	"github.com/memodash/memodash/internal/provider"
	"github.com/memodash/memodash/internal/proxy"
	"github.com/memodash/memodash/internal/recall"
	"github.com/memodash/memodash/internal/retention"
	"github.com/memodash/memodash/internal/session"
	"github.com/memodash/memodash/internal/store"
	"github.com/memodash/memodash/internal/version"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	userID := flag.String("user", "local", "user id for this session")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	if err := run(*configPath, *userID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, userID string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Parse([]byte("{}"))
	}
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	configs := store.NewToolConfigStore(db)
	memories := store.NewMemoryStore(db)

	var recallOpts []recall.Option
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		ttl := config.Duration(cfg.Redis.CacheTTL, 2*time.Minute)
		recallOpts = append(recallOpts, recall.WithCache(recall.NewRedisCache(rdb, ttl, logger)))
	}
	recallOpts = append(recallOpts, recall.WithMetrics(m))
	recaller := recall.NewRecaller(memories, logger, recallOpts...)

	var proxyOpts []proxy.Option
	if cfg.Proxy.Timeout != "" {
		proxyOpts = append(proxyOpts, proxy.WithTimeout(config.Duration(cfg.Proxy.Timeout, 30*time.Second)))
	}
	px := proxy.NewClient(cfg.Proxy.BaseURL, proxyOpts...)

	registry := capability.NewRegistry(configs, px, logger, capability.WithMetrics(m))

	ctx := identity.WithUser(context.Background(), userID)
	if err := registry.Initialize(ctx, userID); err != nil {
		return fmt.Errorf("initializing registry: %w", err)
	}
	if err := registerLocalTools(registry, memories, recaller); err != nil {
		return err
	}

	var model provider.Client
	if cfg.Model.Enabled {
		model = provider.NewAnthropicClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Model)
	}
	classifier := intent.NewModelClassifier(model, logger)
	workflows := planner.NewModelPlanner(model, logger)

	sessions := session.NewStore()
	sweeper := retention.NewSweeper(
		sessions,
		config.Duration(cfg.Retention.SessionTTL, 24*time.Hour),
		cfg.Retention.Schedule,
		logger,
	)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting retention sweeper: %w", err)
	}
	defer sweeper.Stop()

	sessionID := uuid.NewString()
	tracker := session.NewTracker(sessionID, userID, memories, logger, session.WithMetrics(m))
	if err := sessions.Add(tracker); err != nil {
		return err
	}
	defer func() {
		tracker.Flush(ctx)
		sessions.Delete(sessionID)
	}()

	asst := assistant.New(userID, classifier, recaller, workflows, registry, memories, tracker, logger,
		assistant.WithMetrics(m))

	fmt.Println(version.Get())
	fmt.Printf("Session %s as %s. Ctrl-D to exit.\n", sessionID, userID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		result, err := asst.HandleTurn(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		fmt.Println(result.Reply)
	}
	return scanner.Err()
}

func openStore(cfg *config.Config) (*store.DB, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.OpenPostgres(cfg.Store.DSN)
	case "sqlite", "":
		return store.Open(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func registerLocalTools(registry *capability.Registry, memories *store.MemoryStore, recaller *recall.Recaller) error {
	handlers := map[string]capability.Handler{
		"dashboard.memory":   localtools.NewMemory(memories, recaller),
		"dashboard.api_keys": localtools.NewAPIKeys(newLocalKeys()),
		"dashboard.usage":    localtools.NewUsage(localUsage{}),
	}
	for toolID, h := range handlers {
		if err := registry.RegisterHandler(toolID, h); err != nil {
			return fmt.Errorf("registering %s: %w", toolID, err)
		}
	}
	return nil
}

// localKeys is a process-local key service for standalone runs. In a
// deployed node the dashboard backend serves this interface.
type localKeys struct {
	keys map[string][]localtools.APIKey
}

func newLocalKeys() *localKeys {
	return &localKeys{keys: make(map[string][]localtools.APIKey)}
}

func (l *localKeys) List(_ context.Context, userID string) ([]localtools.APIKey, error) {
	return l.keys[userID], nil
}

func (l *localKeys) Create(_ context.Context, userID, label string) (localtools.APIKey, error) {
	key := localtools.APIKey{
		ID:        "key_" + uuid.NewString(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	l.keys[userID] = append(l.keys[userID], key)
	return key, nil
}

func (l *localKeys) Revoke(_ context.Context, userID, keyID string) error {
	for i, key := range l.keys[userID] {
		if key.ID == keyID {
			l.keys[userID][i].Revoked = true
			return nil
		}
	}
	return fmt.Errorf("key %q not found", keyID)
}

type localUsage struct{}

func (localUsage) Summary(_ context.Context, _, period string) (localtools.UsageSummary, error) {
	return localtools.UsageSummary{Period: period}, nil
}
