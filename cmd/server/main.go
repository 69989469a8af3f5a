package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"avocado.town/internal/config"
	"avocado.town/internal/persistence/legacy"
	persistlog "avocado.town/internal/persistence/log"
	"avocado.town/internal/persistence/store"
	"avocado.town/internal/sim/engine"
	"avocado.town/internal/sim/tuning"
	"avocado.town/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path (\":mem:\" keeps state in memory)")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory (event journal)")
	flag.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml")
	flag.StringVar(&cfg.LegacyPath, "legacy", cfg.LegacyPath, "legacy database.json to import once at startup (optional)")
	flag.BoolVar(&cfg.DisableJournal, "disable_journal", cfg.DisableJournal, "do not write the event journal")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	defaults := engine.DefaultGlobal(tune)
	if p := strings.TrimSpace(cfg.LegacyPath); p != "" {
		snap, err := legacy.ReadFile(p)
		if err != nil {
			logger.Fatalf("read legacy db: %v", err)
		}
		applied, err := legacy.Import(ctx, st, snap, defaults, tune.ShardPoolCap)
		if err != nil {
			logger.Fatalf("import legacy db: %v", err)
		}
		logger.Printf("legacy import path=%s key=%s profiles=%d applied=%v", p, snap.Key, len(snap.Profiles), applied)
	}

	global, err := st.LoadGlobal(ctx, defaults)
	if err != nil {
		logger.Fatalf("load global state: %v", err)
	}

	writer := store.NewWriter(st, store.WriterConfig{
		QueueSize: cfg.PersistQueue,
		Logger:    log.New(os.Stdout, "[store] ", log.LstdFlags|log.Lmicroseconds),
	})

	var journal engine.Journal
	if !cfg.DisableJournal {
		j := persistlog.NewEventJournal(cfg.DataDir)
		defer j.Close()
		journal = j
	}

	eng, err := engine.New(engine.Config{
		Tuning:  tune,
		Logger:  log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds),
		Persist: writer,
		Journal: journal,
	})
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	eng.Restore(global)
	logger.Printf("restored total=%d pool=%d stage=%s reset_day=%s", global.Total, global.ShardPool, global.StageColor, global.LastResetDate)

	go runEngine(ctx, eng, logger)

	wsSrv := ws.NewServer(eng, logger, ws.Options{
		QueueSize:      cfg.ClientQueue,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	mux := newMux(eng, writer, wsSrv, logger, envBool("AVOCADO_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s db=%s", cfg.Addr, cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	cancel()
	<-eng.Done()
	if err := writer.Close(); err != nil {
		logger.Printf("close writer: %v", err)
	}
	s := writer.Stats()
	logger.Printf("stopped persist_done=%d persist_fail=%d persist_drop=%d", s.DoneTotal, s.FailTotal, s.DropTotal)
}

// runEngine runs the loop until ctx ends; a plain cancellation is not an error.
func runEngine(ctx context.Context, eng *engine.Engine, logger *log.Logger) {
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("engine stopped: %v", err)
	}
}

func openStore(ctx context.Context, path string) (store.Store, error) {
	if path == config.MemoryDB {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(ctx, path)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
