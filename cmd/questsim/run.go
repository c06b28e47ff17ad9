package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/questsim/internal/checkpoint"
	"github.com/lawnchairsociety/questsim/internal/combat"
	"github.com/lawnchairsociety/questsim/internal/config"
	"github.com/lawnchairsociety/questsim/internal/database"
	"github.com/lawnchairsociety/questsim/internal/docket"
	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/export"
	"github.com/lawnchairsociety/questsim/internal/hero"
	"github.com/lawnchairsociety/questsim/internal/logger"
	"github.com/lawnchairsociety/questsim/internal/progress"
	"github.com/lawnchairsociety/questsim/internal/study"
)

// world is everything loaded from the input files.
type world struct {
	cfg      *config.Config
	catalog  *hero.Catalog
	dungeons *dungeon.Registry
	team     *hero.Team
	docket   *docket.Docket
}

// load initializes logging and reads every input file.
func load(in inputs) (*world, error) {
	logConfig, err := logger.LoadConfig(*in.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	cfg, err := config.LoadConfig(*in.config)
	if err != nil {
		return nil, err
	}

	catalog, err := hero.LoadSkillsFromYAML(*in.skills)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded skills", "count", len(catalog.Names()))

	registry, err := dungeon.LoadDungeonsFromYAML(*in.dungeons)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded dungeons", "count", registry.Count())

	team, err := hero.LoadTeamFromYAML(*in.team, catalog)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded team", "heroes", team.Len())

	d, err := docket.Load(*in.docket)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded docket", "name", d.Name, "studies", len(d.Studies), "pending", d.Pending())

	return &world{cfg: cfg, catalog: catalog, dungeons: registry, team: team, docket: d}, nil
}

// stores holds the persistence backends selected by config.
type stores struct {
	db          *database.Database
	redis       *checkpoint.RedisStore
	checkpoints study.Checkpointer
}

func openStores(cfg config.StorageConfig) (*stores, error) {
	s := &stores{}
	switch cfg.Checkpoint {
	case config.CheckpointSQLite, config.CheckpointPostgres:
		db, err := database.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		s.db = db
		s.checkpoints = db
	case config.CheckpointRedis:
		rs, err := checkpoint.NewRedisStore(cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return nil, err
		}
		s.redis = rs
		s.checkpoints = rs
	}
	logger.Info("Checkpoint store selected", "driver", cfg.Checkpoint)
	return s, nil
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}

func runDocket(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	in := inputFlags(fs)
	workers := fs.Int("workers", 0, "Studies run in parallel (default: config or CPU count)")
	fs.Parse(args)

	w, err := load(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	if *workers > 0 {
		w.cfg.Simulation.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(w.cfg.Storage)
	if err != nil {
		logger.Error("Failed to open checkpoint store", "error", err)
		return exitError
	}
	defer st.Close()

	runID := uuid.NewString()
	if st.db != nil {
		if runID, err = st.db.StartRun(ctx, w.docket.Name); err != nil {
			logger.Error("Failed to record run", "error", err)
			return exitError
		}
	}
	logger.Info("Starting docket", "docket", w.docket.Name, "run_id", runID, "workers", w.cfg.Simulation.Workers)

	var (
		sinks     study.MultiSink
		recorders study.MultiRecorder
		closers   []io.Closer
	)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("Failed to close results file", "error", err)
			}
		}
	}()

	if dir := w.cfg.Storage.ResultsDir; dir != "" {
		dir = filepath.Join(dir, runID)
		lw, err := export.CreateLoadoutFile(filepath.Join(dir, "loadouts.csv"))
		if err != nil {
			logger.Error("Failed to create results file", "error", err)
			return exitError
		}
		sinks = append(sinks, lw)
		closers = append(closers, lw)

		if w.cfg.Simulation.RecordSimulations {
			sw, err := export.CreateSimulationFile(filepath.Join(dir, "simulations.csv"))
			if err != nil {
				logger.Error("Failed to create results file", "error", err)
				return exitError
			}
			recorders = append(recorders, sw)
			closers = append(closers, sw)
		}
		logger.Info("Writing results", "dir", dir)
	}
	if st.db != nil {
		sinks = append(sinks, st.db)
		if w.cfg.Simulation.RecordSimulations {
			recorders = append(recorders, st.db)
		}
	}

	env := study.Env{
		RunID:       runID,
		Combat:      combat.Options{MaxRounds: w.cfg.Simulation.MaxRounds},
		Checkpoints: st.checkpoints,
	}
	if len(sinks) > 0 {
		env.Sink = sinks
	}
	if len(recorders) > 0 {
		env.Recorder = recorders
	}

	bus := progress.NewBus(w.cfg.Simulation.ProgressBuffer)
	observers := []progress.Observer{progress.NewLogObserver(w.cfg.Progress.LogInterval)}
	if addr := w.cfg.Progress.ListenAddr; addr != "" {
		hub := progress.NewHub(w.cfg.Progress)
		observers = append(observers, hub)
		go func() {
			if err := hub.ListenAndServe(ctx, addr); err != nil {
				logger.Error("Progress feed stopped", "error", err)
			}
		}()
	}
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		bus.Dispatch(context.Background(), observers...)
	}()

	runner := &docket.Runner{
		Team:     w.team,
		Catalog:  w.catalog,
		Dungeons: w.dungeons,
		Workers:  w.cfg.Simulation.Workers,
		Study:    env,
		Bus:      bus,
	}
	res, err := runner.Run(ctx, w.docket, *in.docket)

	bus.Close()
	<-dispatched
	if n := bus.Dropped(); n > 0 {
		logger.Warning("Progress events dropped", "count", n)
	}

	if st.db != nil {
		if ferr := st.db.FinishRun(context.Background(), runID); ferr != nil {
			logger.Error("Failed to record run completion", "error", ferr)
		}
	}

	logger.Info("Docket finished",
		"docket", w.docket.Name,
		"completed", res.Completed,
		"studies", res.Studies,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"interrupted", res.Interrupted,
		"simulations", res.Simulations)

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		logger.Warning("Docket interrupted; rerun to resume", "docket", w.docket.Name)
		return exitInterrupted
	default:
		logger.Error("Docket run failed", "error", err)
		return exitError
	}
}

// countStudies prints the size of each study without running it.
func countStudies(args []string) int {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	in := inputFlags(fs)
	fs.Parse(args)

	w, err := load(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	ids := fs.Args()
	code := exitOK
	var loadouts, sims uint64
	for _, entry := range w.docket.Studies {
		if len(ids) > 0 && !slices.Contains(ids, entry.ID) {
			continue
		}

		cfg, err := entry.Config()
		if err != nil {
			fmt.Printf("%s: %v\n", entry.ID, err)
			code = exitError
			continue
		}
		s, err := study.New(cfg, w.team, w.catalog, w.dungeons)
		if err != nil {
			fmt.Printf("%s: %v\n", entry.ID, err)
			code = exitError
			continue
		}

		status := "pending"
		if entry.Completed {
			status = "completed"
		}
		fmt.Printf("=== %s (%s) ===\n", cfg.Label(), status)
		fmt.Printf("Candidates: %d, varying slots: %d, loadouts: %d, simulations: %d\n",
			len(s.Skills()), s.VaryingSlots(), s.Total(), s.Total()*uint64(cfg.Simulations))
		if s.Total() > 0 {
			first, _ := s.Loadout(0)
			last, _ := s.Loadout(s.Total() - 1)
			fmt.Printf("First: %s\n", study.LoadoutRow{Loadout: first}.LoadoutString())
			fmt.Printf("Last:  %s\n", study.LoadoutRow{Loadout: last}.LoadoutString())
		}
		fmt.Println()

		loadouts += s.Total()
		sims += s.Total() * uint64(cfg.Simulations)
	}
	fmt.Printf("Total: %d loadouts, %d simulations\n", loadouts, sims)
	return code
}

// resetDocket clears completion flags and stored cursors.
func resetDocket(args []string) int {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	in := inputFlags(fs)
	fs.Parse(args)

	w, err := load(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	st, err := openStores(w.cfg.Storage)
	if err != nil {
		logger.Error("Failed to open checkpoint store", "error", err)
		return exitError
	}
	defer st.Close()

	ids := fs.Args()
	n := w.docket.Reset(ids...)
	if st.checkpoints != nil {
		ctx := context.Background()
		for _, entry := range w.docket.Studies {
			if len(ids) > 0 && !slices.Contains(ids, entry.ID) {
				continue
			}
			if err := st.checkpoints.ClearCursor(ctx, entry.ID); err != nil {
				logger.Error("Failed to clear checkpoint", "study", entry.ID, "error", err)
				return exitError
			}
		}
	}

	if err := w.docket.Save(*in.docket); err != nil {
		logger.Error("Failed to save docket", "error", err)
		return exitError
	}
	fmt.Printf("Reset %d studies in %s\n", n, *in.docket)
	return exitOK
}
