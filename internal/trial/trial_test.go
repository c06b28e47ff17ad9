package trial

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/lawnchairsociety/questsim/internal/combat"
	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/hero"
)

func testTeam(t *testing.T) *hero.Team {
	t.Helper()
	team, err := hero.NewTeam([]hero.Hero{
		{ID: "f1", Name: "f1", Line: hero.Fighter, HPMax: 1000, Attack: 120, CritChance: 0.1, CritMultiplier: 2, Threat: 2},
		{ID: "r1", Name: "r1", Line: hero.Rogue, HPMax: 700, Attack: 150, Evasion: 0.2, CritChance: 0.2, CritMultiplier: 2, Threat: 1},
	}, nil)
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}
	return team
}

func testDungeon() *dungeon.Dungeon {
	return &dungeon.Dungeon{
		ID:   "crypt",
		Zone: "undead",
		Tiers: map[dungeon.Difficulty]dungeon.Tier{
			dungeon.Easy: {HP: 1500, Damage: 60, DefenseCap: 100, CritChance: 0.1, CritMultiplier: 1.5, MinibossChance: 0.2},
			dungeon.Hard: {HP: 4000, Damage: 150, DefenseCap: 300, CritChance: 0.15, CritMultiplier: 1.5, AoEDamage: 50, AoEChance: 0.3},
		},
	}
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

type recorderFunc func(ctx context.Context, rec SimulationRecord) error

func (f recorderFunc) RecordSimulation(ctx context.Context, rec SimulationRecord) error {
	return f(ctx, rec)
}

func TestNewRejectsInvalidQuantity(t *testing.T) {
	for _, qty := range []int{0, -3} {
		_, err := New(Config{Team: testTeam(t), Dungeon: testDungeon(), Simulations: qty})
		if !errors.Is(err, ErrInvalidSimulationQty) {
			t.Errorf("qty %d: expected ErrInvalidSimulationQty, got %v", qty, err)
		}
	}
}

func TestNewRejectsUnknownDifficulty(t *testing.T) {
	_, err := New(Config{
		Team:         testTeam(t),
		Dungeon:      testDungeon(),
		Difficulties: []dungeon.Difficulty{dungeon.Boss},
		Simulations:  1,
	})
	if !errors.Is(err, dungeon.ErrUnknownDifficulty) {
		t.Errorf("expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestNewRejectsZeroDamageTier(t *testing.T) {
	d := &dungeon.Dungeon{
		ID:    "harmless",
		Tiers: map[dungeon.Difficulty]dungeon.Tier{dungeon.Easy: {HP: 10}},
	}
	_, err := New(Config{Team: testTeam(t), Dungeon: d, Simulations: 1})
	if !errors.Is(err, dungeon.ErrNonPositiveDamage) {
		t.Errorf("expected ErrNonPositiveDamage, got %v", err)
	}
}

func TestRunProducesExactlyNResults(t *testing.T) {
	for _, n := range []int{1, 7, 40} {
		tr, err := New(Config{
			ID:          "t",
			Team:        testTeam(t),
			Dungeon:     testDungeon(),
			Simulations: n,
			Combat:      combat.Options{MaxRounds: combat.DefaultMaxRounds},
			NewRand:     seeded,
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		var ticks, lastDone, lastTotal int
		var indexes []int
		summary, err := tr.Run(context.Background(), Hooks{
			Recorder: recorderFunc(func(_ context.Context, rec SimulationRecord) error {
				indexes = append(indexes, rec.Index)
				return nil
			}),
			OnSimulation: func(done, total int) {
				ticks++
				lastDone, lastTotal = done, total
			},
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if len(tr.Results()) != n || summary.Simulations != n {
			t.Errorf("n=%d: results=%d summary=%d", n, len(tr.Results()), summary.Simulations)
		}
		if summary.Wins+summary.Losses != n {
			t.Errorf("n=%d: wins %d + losses %d", n, summary.Wins, summary.Losses)
		}
		if ticks != n || lastDone != n || lastTotal != n {
			t.Errorf("n=%d: ticks=%d last=(%d,%d)", n, ticks, lastDone, lastTotal)
		}
		for i, idx := range indexes {
			if idx != i {
				t.Fatalf("n=%d: record %d has index %d", n, i, idx)
			}
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tr, err := New(Config{Team: testTeam(t), Dungeon: testDungeon(), Simulations: 5})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tr.Run(ctx, Hooks{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(tr.Results()) != 0 {
		t.Errorf("expected no results, got %d", len(tr.Results()))
	}
}

func TestRunPropagatesRecorderError(t *testing.T) {
	tr, err := New(Config{Team: testTeam(t), Dungeon: testDungeon(), Simulations: 3})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("disk full")
	_, err = tr.Run(context.Background(), Hooks{
		Recorder: recorderFunc(func(context.Context, SimulationRecord) error { return boom }),
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected recorder error, got %v", err)
	}
}

func TestRunDoesNotMutateTeam(t *testing.T) {
	team := testTeam(t)
	before := team.Heroes()

	tr, err := New(Config{Team: team, Dungeon: testDungeon(), Simulations: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Run(context.Background(), Hooks{}); err != nil {
		t.Fatal(err)
	}

	for i, h := range team.Heroes() {
		if h.HP != before[i].HP || h.BerserkerStage != before[i].BerserkerStage {
			t.Errorf("hero %s changed: %+v", h.ID, h)
		}
	}
}

func TestSummarize(t *testing.T) {
	results := []combat.SimResult{
		{
			Success: true,
			Rounds:  4,
			Loot:    2,
			Heroes: []combat.HeroResult{
				{ID: "a", DamageDealt: 100, DamageTaken: 10, Survived: true, Attacks: 4, Crits: 1, HitsTaken: 3, Dodges: 1},
			},
		},
		{
			Success:   false,
			TimedOut:  true,
			Rounds:    10,
			Encounter: dungeon.Encounter{HP: 250, HPMax: 1000, Miniboss: dungeon.Huge},
			Heroes: []combat.HeroResult{
				{ID: "a", DamageDealt: 300, DamageTaken: 50, Attacks: 4, Crits: 3, HitsTaken: 4},
			},
		},
	}

	s := Summarize(results)

	if s.Wins != 1 || s.Losses != 1 || s.TimedOut != 1 || s.MinibossSpawns != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.WinRate != 50 || s.AvgRounds != 7 || s.MinRounds != 4 || s.MaxRounds != 10 {
		t.Errorf("rounds/win rate = %+v", s)
	}
	if s.AvgEncounterHP != 0.25 || s.AvgLoot != 1 {
		t.Errorf("AvgEncounterHP=%v AvgLoot=%v", s.AvgEncounterHP, s.AvgLoot)
	}

	h, ok := s.Hero("a")
	if !ok {
		t.Fatal("hero a missing")
	}
	if h.AvgDamageDealt != 200 || h.AvgDamageTaken != 30 || h.SurvivalRate != 50 {
		t.Errorf("hero summary = %+v", h)
	}
	if h.CritRate != 50 || math.Abs(h.DodgeRate-12.5) > 1e-9 {
		t.Errorf("crit/dodge = %v/%v", h.CritRate, h.DodgeRate)
	}

	if empty := Summarize(nil); empty.Simulations != 0 || empty.Heroes != nil {
		t.Errorf("Summarize(nil) = %+v", empty)
	}
}
