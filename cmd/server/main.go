package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelcolony/internal/persistence/indexdb"
	persistlog "voxelcolony/internal/persistence/log"
	"voxelcolony/internal/sim/colony"
	"voxelcolony/internal/sim/runtime"
	"voxelcolony/internal/sim/tuning"
	"voxelcolony/internal/sim/world"
	"voxelcolony/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "", "world id (default: from tuning)")
		seed       = flag.Int64("seed", 0, "world seed override (0: from tuning)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		logFile    = flag.String("log_file", "", "rotating log file path (empty: console only)")
		workers    = flag.Int("workers", 0, "worker count override (0: from tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/audit index")
		verbose    = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	logger, syncLog := newLogger(*logFile, *verbose)
	defer syncLog()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Infow("tuning not found, using defaults", "path", *tuningPath)
			tune = tuning.Default()
		} else {
			logger.Fatalw("load tuning", "err", err)
		}
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}
	if *seed != 0 {
		tune.World.Seed = *seed
	}
	if *workers > 0 {
		tune.Workers = *workers
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalw("create world dir", "err", err)
	}

	store := world.NewChunkStore(world.Gen{
		Seed:   tune.World.Seed,
		SizeX:  tune.World.SizeX,
		SizeZ:  tune.World.SizeZ,
		Height: tune.World.Height,
	})

	sim := runtime.New(runtime.Config{
		WorldID:           tune.WorldID,
		TickRateHz:        tune.TickRateHz,
		Workers:           tune.Workers,
		PathMaxExpansions: tune.Pathfinder.MaxExpansions,
		TickLogEveryTicks: tune.TickLogEveryTicks,
	}, store, colony.Params{
		MoveSpeed:        tune.Worker.MoveSpeedBps,
		WorkSeconds:      tune.Worker.WorkSeconds,
		IdlePauseSeconds: tune.Worker.IdlePauseSeconds,
		WanderWaitMin:    tune.Worker.WanderWaitMinS,
		WanderWaitMax:    tune.Worker.WanderWaitMaxS,
		WanderRadiusMin:  tune.Worker.WanderRadiusMin,
		WanderRadiusMax:  tune.Worker.WanderRadiusMax,
		WanderAttempts:   tune.Worker.WanderAttempts,
	})

	// Persistence sinks. The JSONL writers always run; the sqlite index is
	// optional read-model state for the admin endpoints.
	tickLog := persistlog.NewTickWriter(worldDir)
	auditLog := persistlog.NewAuditWriter(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalw("open index db", "err", err)
		}
		defer idx.Close()
	}

	sim.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	sim.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := sim.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorw("sim stopped", "err", err)
		}
	}()

	obsSrv := observer.NewServer(sim, auditSource(idx), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP voxelcolony_tick Current sim tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_tick gauge\n")
		fmt.Fprintf(rw, "voxelcolony_tick{world=%q} %d\n", tune.WorldID, sim.CurrentTick())

		fmt.Fprintf(rw, "# HELP voxelcolony_tick_rate_hz Configured tick rate.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_tick_rate_hz gauge\n")
		fmt.Fprintf(rw, "voxelcolony_tick_rate_hz{world=%q} %d\n", tune.WorldID, tune.TickRateHz)

		fmt.Fprintf(rw, "# HELP voxelcolony_workers Configured worker count.\n")
		fmt.Fprintf(rw, "# TYPE voxelcolony_workers gauge\n")
		fmt.Fprintf(rw, "voxelcolony_workers{world=%q} %d\n", tune.WorldID, tune.Workers)
	})
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/v1/tasks", obsSrv.TasksHandler())
	mux.HandleFunc("/v1/admin/audits", obsSrv.AuditsHandler())

	if envBool("VX_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Infow("listening", "addr", *addr, "world", tune.WorldID, "seed", tune.World.Seed, "workers", tune.Workers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("listen", "err", err)
	}
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

// auditSource avoids handing the transport a non-nil interface wrapping a nil
// pointer when the index db is disabled.
func auditSource(idx *indexdb.SQLiteIndex) observer.AuditSource {
	if idx == nil {
		return nil
	}
	return idx
}

type multiTickLogger struct {
	a runtime.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(e runtime.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(e)
	}
	if m.b != nil {
		_ = m.b.WriteTick(e)
	}
	return nil
}

type multiAuditLogger struct {
	a runtime.AuditLogger
	b *indexdb.SQLiteIndex
}

func (m multiAuditLogger) WriteAudit(e runtime.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(e)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(e)
	}
	return nil
}
