package study

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/lawnchairsociety/questsim/internal/combat"
	"github.com/lawnchairsociety/questsim/internal/logger"
	"github.com/lawnchairsociety/questsim/internal/trial"
)

// Env carries the collaborators a study run reports to. Every field is optional.
type Env struct {
	RunID       string
	Combat      combat.Options
	Checkpoints Checkpointer
	Sink        ResultSink
	Recorder    trial.Recorder

	// OnProgress is called after every simulation on a loadout's first
	// dungeon with the study-wide simulation count.
	OnProgress func(completed, total uint64)

	NewRand func() *rand.Rand
	Logger  *slog.Logger
}

// Fingerprint returns the hash of the study's enumeration-defining config.
func (s *Study) Fingerprint() string {
	return s.fingerprint
}

// SimulationsRun counts simulations played by this Study value, escalation
// passes included.
func (s *Study) SimulationsRun() int {
	return s.simulations
}

// Run evaluates loadouts from the cursor to the end. The cursor is
// checkpointed after every loadout and the context is checked before each
// one, so a cancelled run resumes at the first unevaluated loadout.
func (s *Study) Run(ctx context.Context, env Env) error {
	log := env.Logger
	if log == nil {
		log = logger.With("study", s.cfg.ID)
	}

	if err := s.resume(ctx, env, log); err != nil {
		return err
	}

	log.Info("study started",
		"cursor", s.cursor,
		"total", s.total,
		"candidates", len(s.skills),
		"slots", s.k,
		"dungeons", len(s.dungeons))

	for !s.Done() {
		if err := ctx.Err(); err != nil {
			log.Warn("study interrupted", "cursor", s.cursor, "error", err)
			return err
		}

		loadout, err := s.CurrentLoadout()
		if err != nil {
			return err
		}

		row, err := s.evaluate(ctx, env, loadout)
		if err != nil {
			return fmt.Errorf("study %s loadout %d: %w", s.cfg.ID, s.cursor, err)
		}
		if env.Sink != nil {
			if err := env.Sink.WriteLoadout(ctx, row); err != nil {
				return fmt.Errorf("study %s loadout %d: write result: %w", s.cfg.ID, s.cursor, err)
			}
		}

		if err := s.Advance(); err != nil {
			return err
		}
		if err := s.checkpoint(ctx, env); err != nil {
			return err
		}

		log.Debug("loadout evaluated",
			"index", row.Index,
			"loadout", row.LoadoutString(),
			"dungeon", row.Dungeon,
			"win_rate", row.Summary.WinRate)
	}

	log.Info("study finished", "loadouts", s.total, "simulations", s.simulations)
	return nil
}

// resume restores the cursor from the checkpoint store. A checkpoint saved
// under a different configuration restarts the enumeration.
func (s *Study) resume(ctx context.Context, env Env, log *slog.Logger) error {
	if env.Checkpoints == nil {
		return nil
	}

	cp, ok, err := env.Checkpoints.LoadCursor(ctx, s.cfg.ID)
	if err != nil {
		return fmt.Errorf("study %s: load checkpoint: %w", s.cfg.ID, err)
	}
	if !ok {
		return nil
	}

	if cp.Fingerprint != s.fingerprint {
		log.Warn("study configuration changed since last checkpoint, restarting enumeration",
			"checkpoint_cursor", cp.Cursor)
		s.cursor = 0
		return nil
	}
	if err := s.SetCursor(cp.Cursor); err != nil {
		return fmt.Errorf("study %s: %w", s.cfg.ID, err)
	}
	if cp.Cursor > 0 {
		log.Info("resuming study", "cursor", cp.Cursor)
	}
	return nil
}

func (s *Study) checkpoint(ctx context.Context, env Env) error {
	if env.Checkpoints == nil {
		return nil
	}
	err := env.Checkpoints.SaveCursor(ctx, Checkpoint{
		StudyID:     s.cfg.ID,
		Cursor:      s.cursor,
		Total:       s.total,
		Fingerprint: s.fingerprint,
		Completed:   s.Done(),
		UpdatedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("study %s: save checkpoint: %w", s.cfg.ID, err)
	}
	return nil
}

// evaluate runs one loadout on the first dungeon and escalates to harder
// ones while the win rate holds.
func (s *Study) evaluate(ctx context.Context, env Env, loadout []string) (LoadoutRow, error) {
	subjectID := s.team.Hero(s.subject).ID
	variant, err := s.team.WithSkills(subjectID, loadout, s.catalog)
	if err != nil {
		return LoadoutRow{}, err
	}

	row := LoadoutRow{
		RunID:   env.RunID,
		StudyID: s.cfg.ID,
		Index:   s.cursor,
		Loadout: loadout,
	}

	qty := uint64(s.cfg.Simulations)
	base := s.cursor * qty
	for i, d := range s.dungeons {
		tr, err := trial.New(trial.Config{
			ID:           fmt.Sprintf("%s/%d/%s", s.cfg.ID, s.cursor, d.ID),
			Team:         variant,
			Dungeon:      d,
			Difficulties: s.cfg.Difficulties,
			Miniboss:     s.cfg.Miniboss,
			Simulations:  s.cfg.Simulations,
			Combat:       env.Combat,
			NewRand:      env.NewRand,
		})
		if err != nil {
			return LoadoutRow{}, err
		}

		firstPass := i == 0
		summary, err := tr.Run(ctx, trial.Hooks{
			Recorder: env.Recorder,
			OnSimulation: func(done, _ int) {
				s.simulations++
				if firstPass && env.OnProgress != nil {
					env.OnProgress(base+uint64(done), s.total*qty)
				}
			},
		})
		if err != nil {
			return LoadoutRow{}, err
		}

		row.Dungeon = d.ID
		row.Summary = summary
		if s.cfg.EscalationThreshold <= 0 || summary.WinRate < s.cfg.EscalationThreshold {
			break
		}
		row.Cleared = i + 1
	}

	return row, nil
}
