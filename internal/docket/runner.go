package docket

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/hero"
	"github.com/lawnchairsociety/questsim/internal/logger"
	"github.com/lawnchairsociety/questsim/internal/progress"
	"github.com/lawnchairsociety/questsim/internal/study"
)

// Runner executes the pending studies of a docket on a bounded worker pool.
// The team, catalog and registry are shared read-only by every worker.
type Runner struct {
	Team     *hero.Team
	Catalog  *hero.Catalog
	Dungeons *dungeon.Registry

	// Workers bounds how many studies run at once; 0 means GOMAXPROCS.
	Workers int

	// Study is the template environment for every study. Logger and
	// OnProgress are set per study.
	Study study.Env

	Bus *progress.Bus
}

// Result tallies one docket run.
type Result struct {
	Studies     int
	Completed   int // finished this run or earlier
	Skipped     int // configuration errors
	Failed      int
	Interrupted int
	Simulations uint64
}

// Run executes every study not flagged completed and then saves the docket
// to statePath once. Failing studies are logged and do not stop their
// siblings. Only a failed save, or cancellation, is returned as an error.
func (r *Runner) Run(ctx context.Context, d *Docket, statePath string) (Result, error) {
	res := Result{Studies: len(d.Studies)}
	total := uint64(len(d.Studies))

	var (
		completed   atomic.Uint64
		skipped     atomic.Int64
		failed      atomic.Int64
		interrupted atomic.Int64
		simulations atomic.Uint64
	)

	for _, s := range d.Studies {
		if s.Completed {
			completed.Add(1)
		}
	}
	if n := completed.Load(); n > 0 {
		logger.Info("Skipping completed studies", "docket", d.Name, "completed", n, "studies", total)
	}
	r.publish(progress.Event{Kind: progress.KindDocket, Label: d.Name, Completed: completed.Load(), Total: total})

	workers := r.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range d.Studies {
		if d.Studies[i].Completed {
			continue
		}
		entry := &d.Studies[i]
		g.Go(func() error {
			outcome, sims := r.runStudy(ctx, entry)
			simulations.Add(sims)

			switch outcome {
			case outcomeDone:
				entry.Completed = true
				n := completed.Add(1)
				r.publish(progress.Event{Kind: progress.KindDocket, Label: d.Name, Completed: n, Total: total})
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeInterrupted:
				interrupted.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	res.Completed = int(completed.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = int(failed.Load())
	res.Interrupted = int(interrupted.Load())
	res.Simulations = simulations.Load()

	if err := d.Save(statePath); err != nil {
		logger.Error("Failed to save docket", "docket", d.Name, "path", statePath, "error", err)
		return res, fmt.Errorf("save docket %s: %w", d.Name, err)
	}
	logger.Info("Docket saved",
		"docket", d.Name,
		"path", statePath,
		"completed", res.Completed,
		"studies", res.Studies,
		"skipped", res.Skipped,
		"failed", res.Failed)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeInterrupted
)

// runStudy runs one study to completion. The entry's cursor and fingerprint
// are updated in place; only this worker touches the entry.
func (r *Runner) runStudy(ctx context.Context, entry *StudyEntry) (outcome, uint64) {
	log := logger.With("study", entry.ID)

	cfg, err := entry.Config()
	if err == nil {
		var st *study.Study
		st, err = study.New(cfg, r.Team, r.Catalog, r.Dungeons)
		if err == nil {
			return r.execute(ctx, entry, cfg, st)
		}
	}

	log.Warn("Skipping study with invalid configuration", "error", err)
	r.publish(progress.Event{Kind: progress.KindStudySkipped, Label: entry.ID, StudyID: entry.ID, Message: err.Error()})
	return outcomeSkipped, 0
}

func (r *Runner) execute(ctx context.Context, entry *StudyEntry, cfg study.Config, st *study.Study) (outcome, uint64) {
	log := logger.With("study", entry.ID)
	label := cfg.Label()

	if entry.Cursor > 0 {
		if entry.Fingerprint == st.Fingerprint() {
			if err := st.SetCursor(entry.Cursor); err != nil {
				log.Warn("Ignoring saved cursor", "cursor", entry.Cursor, "error", err)
			}
		} else {
			log.Warn("Study configuration changed since last run, restarting enumeration", "cursor", entry.Cursor)
		}
	}

	env := r.Study
	env.Logger = log
	env.OnProgress = func(done, total uint64) {
		r.publish(progress.Event{Kind: progress.KindSimulation, Label: label, StudyID: entry.ID, Completed: done, Total: total})
	}

	r.publish(progress.Event{
		Kind:    progress.KindStudyStarted,
		Label:   label,
		StudyID: entry.ID,
		Total:   st.Total() * uint64(cfg.Simulations),
	})

	err := st.Run(ctx, env)
	entry.Cursor = st.Cursor()
	entry.Fingerprint = st.Fingerprint()
	sims := uint64(st.SimulationsRun())

	switch {
	case err == nil:
		r.publish(progress.Event{Kind: progress.KindStudyDone, Label: label, StudyID: entry.ID, Completed: st.Total(), Total: st.Total()})
		return outcomeDone, sims
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return outcomeInterrupted, sims
	default:
		log.Error("Study failed", "cursor", entry.Cursor, "error", err)
		r.publish(progress.Event{Kind: progress.KindStudyFailed, Label: label, StudyID: entry.ID, Message: err.Error()})
		return outcomeFailed, sims
	}
}

func (r *Runner) publish(e progress.Event) {
	if r.Bus != nil {
		r.Bus.Publish(e)
	}
}
