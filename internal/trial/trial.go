// Package trial runs repeated independent simulations of one team against
// one dungeon and aggregates the outcomes.
package trial

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/lawnchairsociety/questsim/internal/combat"
	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/hero"
)

// ErrInvalidSimulationQty is returned when a trial asks for fewer than one simulation.
var ErrInvalidSimulationQty = errors.New("simulation quantity must be at least 1")

// Config is the fixed configuration under test.
type Config struct {
	ID           string
	Team         *hero.Team
	Dungeon      *dungeon.Dungeon
	Difficulties []dungeon.Difficulty // picked uniformly per simulation
	Miniboss     dungeon.MinibossPolicy
	Simulations  int
	Combat       combat.Options

	// NewRand returns the random source for one simulation. Defaults to a
	// freshly seeded PCG generator.
	NewRand func() *rand.Rand
}

// SimulationRecord is one completed simulation, handed to a Recorder.
type SimulationRecord struct {
	TrialID string
	Index   int
	Result  combat.SimResult
}

// Recorder persists per-simulation rows.
type Recorder interface {
	RecordSimulation(ctx context.Context, rec SimulationRecord) error
}

// Hooks are optional side effects of a trial run.
type Hooks struct {
	Recorder Recorder
	// OnSimulation is called after every completed simulation.
	OnSimulation func(completed, total int)
}

// Trial evaluates one configuration.
type Trial struct {
	cfg     Config
	results []combat.SimResult
}

// New validates cfg and returns a trial ready to run.
func New(cfg Config) (*Trial, error) {
	if cfg.Simulations < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSimulationQty, cfg.Simulations)
	}
	if cfg.Team == nil || cfg.Team.Len() == 0 {
		return nil, hero.ErrEmptyTeam
	}
	if cfg.Dungeon == nil {
		return nil, dungeon.ErrUnknownDungeon
	}

	if len(cfg.Difficulties) == 0 {
		for _, d := range dungeon.Difficulties() {
			if cfg.Dungeon.Has(d) {
				cfg.Difficulties = append(cfg.Difficulties, d)
			}
		}
	}
	if len(cfg.Difficulties) == 0 {
		return nil, fmt.Errorf("%w: dungeon %s has no tiers", dungeon.ErrUnknownDifficulty, cfg.Dungeon.ID)
	}
	if err := cfg.Dungeon.CheckTiers(cfg.Difficulties...); err != nil {
		return nil, err
	}

	if cfg.NewRand == nil {
		cfg.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}

	return &Trial{
		cfg:     cfg,
		results: make([]combat.SimResult, 0, cfg.Simulations),
	}, nil
}

// ID returns the trial identifier.
func (t *Trial) ID() string {
	return t.cfg.ID
}

// Simulations returns the requested simulation count.
func (t *Trial) Simulations() int {
	return t.cfg.Simulations
}

// Results returns the simulations completed so far.
func (t *Trial) Results() []combat.SimResult {
	return t.results
}

// Run plays the remaining simulations and returns the aggregate. The context
// is checked between simulations; on cancellation the partial results stay
// on the trial and the context error is returned.
func (t *Trial) Run(ctx context.Context, hooks Hooks) (Summary, error) {
	for len(t.results) < t.cfg.Simulations {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}

		res, err := t.simulate()
		if err != nil {
			return Summary{}, err
		}
		t.results = append(t.results, res)

		if hooks.Recorder != nil {
			rec := SimulationRecord{TrialID: t.cfg.ID, Index: len(t.results) - 1, Result: res}
			if err := hooks.Recorder.RecordSimulation(ctx, rec); err != nil {
				return Summary{}, fmt.Errorf("record simulation %d: %w", rec.Index, err)
			}
		}
		if hooks.OnSimulation != nil {
			hooks.OnSimulation(len(t.results), t.cfg.Simulations)
		}
	}

	return Summarize(t.results), nil
}

// simulate generates a fresh encounter and fights it with a clone of the team.
func (t *Trial) simulate() (combat.SimResult, error) {
	rng := t.cfg.NewRand()

	diff := t.cfg.Difficulties[rng.IntN(len(t.cfg.Difficulties))]
	enc, err := t.cfg.Dungeon.NewEncounter(diff, t.cfg.Miniboss, rng)
	if err != nil {
		return combat.SimResult{}, err
	}

	return combat.Run(t.cfg.Team, enc, rng, t.cfg.Combat)
}
