package study

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/lawnchairsociety/questsim/internal/combat"
	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/hero"
	"github.com/lawnchairsociety/questsim/internal/trial"
)

const testSkillsYAML = `
skills:
  Crit Up:
    aliases: [crit+]
    crit_chance: 10
  Might:
    attack_pct: 20
  Fortitude:
    hp_pct: 25
  Haste:
    first_strike_rounds: 1
  Bulwark:
    defense_pct: 30
  Shadow Step:
    lines: [rogue]
    evasion: 15
`

const testDungeonsYAML = `
dungeons:
  meadow:
    zone: grass
    difficulties:
      easy: {hp: 1, damage: 0.001, crit_multiplier: 1}
  abyss:
    zone: void
    difficulties:
      easy: {hp: 1000000000, damage: 1000000000, crit_multiplier: 1}
      hard: {hp: 1000000000, damage: 1000000000, crit_multiplier: 1}
  harmless:
    zone: void
    difficulties:
      easy: {hp: 10, damage: 0, crit_multiplier: 1}
`

type fixture struct {
	catalog  *hero.Catalog
	team     *hero.Team
	registry *dungeon.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := hero.ParseSkills([]byte(testSkillsYAML))
	if err != nil {
		t.Fatalf("ParseSkills failed: %v", err)
	}
	registry, err := dungeon.ParseDungeons([]byte(testDungeonsYAML))
	if err != nil {
		t.Fatalf("ParseDungeons failed: %v", err)
	}

	base := hero.Stats{HP: 1000, Attack: 100, Defense: 50, CritMultiplier: 2, Threat: 1}
	heroes := []hero.Hero{
		{ID: "tank", Name: "Tank", Line: hero.Fighter, Base: base},
		{ID: "kat", Name: "Katarina", Line: hero.Rogue, Base: base},
	}
	for i := range heroes {
		if err := heroes[i].Derive(catalog); err != nil {
			t.Fatal(err)
		}
	}
	team, err := hero.NewTeam(heroes, nil)
	if err != nil {
		t.Fatalf("NewTeam failed: %v", err)
	}

	return fixture{catalog: catalog, team: team, registry: registry}
}

func (f fixture) study(t *testing.T, cfg Config) *Study {
	t.Helper()
	s, err := New(cfg, f.team, f.catalog, f.registry)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func baseConfig() Config {
	return Config{
		ID:           "kat-crit",
		Simulations:  3,
		SubjectHero:  "kat",
		PresetSkills: []string{"Fortitude"},
		Skills:       []string{"Might", "crit+", "Crit Up", "Haste", "Fortitude", "Bulwark"},
		SlotCount:    3,
		Dungeons:     []string{"meadow"},
	}
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

type collectSink struct {
	rows  []LoadoutRow
	after func(n int)
}

func (c *collectSink) WriteLoadout(_ context.Context, row LoadoutRow) error {
	c.rows = append(c.rows, row)
	if c.after != nil {
		c.after(len(c.rows))
	}
	return nil
}

func TestNewNormalizesSkills(t *testing.T) {
	f := newFixture(t)
	s := f.study(t, baseConfig())

	want := []string{"Bulwark", "Crit Up", "Haste", "Might"}
	if got := s.Skills(); !slices.Equal(got, want) {
		t.Errorf("Skills() = %v, want %v", got, want)
	}
	if s.VaryingSlots() != 2 {
		t.Errorf("VaryingSlots() = %d, want 2", s.VaryingSlots())
	}
	if s.Total() != 6 || s.Remaining() != 6 {
		t.Errorf("Total/Remaining = %d/%d, want 6/6", s.Total(), s.Remaining())
	}
}

func TestNewFiltersSkillsByLine(t *testing.T) {
	f := newFixture(t)
	cfg := baseConfig()
	cfg.Skills = append(cfg.Skills, "Shadow Step")

	if got := f.study(t, cfg).Skills(); !slices.Contains(got, "Shadow Step") {
		t.Errorf("rogue subject should keep Shadow Step, got %v", got)
	}

	cfg.SubjectHero = "tank"
	if got := f.study(t, cfg).Skills(); slices.Contains(got, "Shadow Step") {
		t.Errorf("fighter subject should drop Shadow Step, got %v", got)
	}
}

func TestNewConfigurationErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero simulations", func(c *Config) { c.Simulations = 0 }, trial.ErrInvalidSimulationQty},
		{"unknown hero", func(c *Config) { c.SubjectHero = "ghost" }, hero.ErrUnknownHero},
		{"unknown skill", func(c *Config) { c.Skills = append(c.Skills, "Fireball") }, hero.ErrUnknownSkill},
		{"unknown preset", func(c *Config) { c.PresetSkills = []string{"Fireball"} }, hero.ErrUnknownSkill},
		{"fewer slots than presets", func(c *Config) { c.SlotCount = 0 }, ErrInvalidSlots},
		{"more slots than skills", func(c *Config) { c.SlotCount = 9 }, ErrInvalidSlots},
		{"unknown dungeon", func(c *Config) { c.Dungeons = []string{"nowhere"} }, dungeon.ErrUnknownDungeon},
		{"no dungeons", func(c *Config) { c.Dungeons = nil }, dungeon.ErrUnknownDungeon},
		{"missing tier", func(c *Config) { c.Difficulties = []dungeon.Difficulty{dungeon.Hard} }, dungeon.ErrUnknownDifficulty},
		{"zero damage tier", func(c *Config) { c.Dungeons = []string{"meadow", "harmless"} }, dungeon.ErrNonPositiveDamage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, f.team, f.catalog, f.registry)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadoutOrder(t *testing.T) {
	f := newFixture(t)
	s := f.study(t, baseConfig())

	// Candidates are [Bulwark, Crit Up, Haste, Might]; the highest index
	// pair comes first.
	want := [][]string{
		{"Fortitude", "Might", "Haste"},
		{"Fortitude", "Might", "Crit Up"},
		{"Fortitude", "Might", "Bulwark"},
		{"Fortitude", "Haste", "Crit Up"},
		{"Fortitude", "Haste", "Bulwark"},
		{"Fortitude", "Crit Up", "Bulwark"},
	}

	for i, w := range want {
		got, err := s.CurrentLoadout()
		if err != nil {
			t.Fatalf("CurrentLoadout at %d: %v", i, err)
		}
		if !slices.Equal(got, w) {
			t.Errorf("loadout %d = %v, want %v", i, got, w)
		}
		if err := s.Advance(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAdvanceCountsDown(t *testing.T) {
	f := newFixture(t)
	s := f.study(t, baseConfig())

	seen := make(map[string]bool)
	for i := uint64(0); i < s.Total(); i++ {
		if s.Remaining() != s.Total()-i {
			t.Fatalf("Remaining() = %d after %d advances", s.Remaining(), i)
		}
		loadout, _ := s.CurrentLoadout()
		seen[fmt.Sprint(loadout)] = true
		if err := s.Advance(); err != nil {
			t.Fatal(err)
		}
	}

	if s.Remaining() != 0 || !s.Done() {
		t.Errorf("Remaining() = %d, want 0", s.Remaining())
	}
	if len(seen) != int(s.Total()) {
		t.Errorf("visited %d distinct loadouts, want %d", len(seen), s.Total())
	}
	if err := s.Advance(); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if _, err := s.CurrentLoadout(); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if err := s.SetCursor(s.Total() + 1); err == nil {
		t.Error("expected error for cursor past the end")
	}
}

func TestRunEvaluatesEveryLoadout(t *testing.T) {
	f := newFixture(t)
	s := f.study(t, baseConfig())
	checkpoints := NewMemoryCheckpoints()
	sink := &collectSink{}

	var lastDone, lastTotal uint64
	err := s.Run(context.Background(), Env{
		RunID:       "run-1",
		Combat:      combat.Options{MaxRounds: combat.DefaultMaxRounds},
		Checkpoints: checkpoints,
		Sink:        sink,
		NewRand:     seeded,
		OnProgress: func(done, total uint64) {
			lastDone, lastTotal = done, total
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(sink.rows))
	}
	for i, row := range sink.rows {
		if row.Index != uint64(i) || row.RunID != "run-1" || row.Dungeon != "meadow" {
			t.Errorf("row %d = %+v", i, row)
		}
		if row.Summary.Simulations != 3 {
			t.Errorf("row %d ran %d simulations", i, row.Summary.Simulations)
		}
	}
	if s.SimulationsRun() != 18 {
		t.Errorf("SimulationsRun() = %d, want 18", s.SimulationsRun())
	}
	if lastDone != 18 || lastTotal != 18 {
		t.Errorf("last progress = %d/%d, want 18/18", lastDone, lastTotal)
	}

	cp, ok, _ := checkpoints.LoadCursor(context.Background(), "kat-crit")
	if !ok || cp.Cursor != 6 || !cp.Completed || cp.Fingerprint != s.Fingerprint() {
		t.Errorf("checkpoint = %+v", cp)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	f := newFixture(t)
	checkpoints := NewMemoryCheckpoints()
	first := f.study(t, baseConfig())
	ctx := context.Background()

	if err := checkpoints.SaveCursor(ctx, Checkpoint{StudyID: "kat-crit", Cursor: 4, Fingerprint: first.Fingerprint()}); err != nil {
		t.Fatal(err)
	}

	sink := &collectSink{}
	if err := first.Run(ctx, Env{Checkpoints: checkpoints, Sink: sink}); err != nil {
		t.Fatal(err)
	}
	if len(sink.rows) != 2 || sink.rows[0].Index != 4 {
		t.Errorf("resumed rows = %+v", sink.rows)
	}

	// A checkpoint from another configuration is ignored.
	if err := checkpoints.SaveCursor(ctx, Checkpoint{StudyID: "kat-crit", Cursor: 4, Fingerprint: "stale"}); err != nil {
		t.Fatal(err)
	}
	sink = &collectSink{}
	if err := f.study(t, baseConfig()).Run(ctx, Env{Checkpoints: checkpoints, Sink: sink}); err != nil {
		t.Fatal(err)
	}
	if len(sink.rows) != 6 {
		t.Errorf("stale checkpoint should restart, got %d rows", len(sink.rows))
	}
}

func TestRunCancelsBetweenLoadouts(t *testing.T) {
	f := newFixture(t)
	s := f.study(t, baseConfig())
	checkpoints := NewMemoryCheckpoints()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &collectSink{after: func(n int) {
		if n == 2 {
			cancel()
		}
	}}

	err := s.Run(ctx, Env{Checkpoints: checkpoints, Sink: sink})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Cursor() != 2 {
		t.Errorf("Cursor() = %d, want 2", s.Cursor())
	}
	cp, _, _ := checkpoints.LoadCursor(context.Background(), "kat-crit")
	if cp.Cursor != 2 || cp.Completed {
		t.Errorf("checkpoint = %+v", cp)
	}
}

func TestRunEscalates(t *testing.T) {
	f := newFixture(t)
	cfg := baseConfig()
	cfg.SlotCount = 2
	cfg.Skills = []string{"Might", "Haste"}
	cfg.Dungeons = []string{"meadow", "abyss"}
	cfg.EscalationThreshold = 50

	s := f.study(t, cfg)
	sink := &collectSink{}
	if err := s.Run(context.Background(), Env{Sink: sink}); err != nil {
		t.Fatal(err)
	}

	if len(sink.rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(sink.rows))
	}
	for _, row := range sink.rows {
		if row.Cleared != 1 || row.Dungeon != "abyss" || row.Summary.Wins != 0 {
			t.Errorf("row = %+v", row)
		}
	}
	if s.SimulationsRun() != 2*3*2 {
		t.Errorf("SimulationsRun() = %d, want 12", s.SimulationsRun())
	}
}

func TestFingerprintTracksConfig(t *testing.T) {
	f := newFixture(t)
	a := f.study(t, baseConfig())
	b := f.study(t, baseConfig())
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical configs should share a fingerprint")
	}

	// Order and aliases do not matter once normalized.
	cfg := baseConfig()
	cfg.Skills = []string{"Bulwark", "Haste", "Crit Up", "Might"}
	if f.study(t, cfg).Fingerprint() != a.Fingerprint() {
		t.Error("equivalent skill lists should share a fingerprint")
	}

	cfg = baseConfig()
	cfg.Simulations = 4
	if f.study(t, cfg).Fingerprint() == a.Fingerprint() {
		t.Error("simulation count should change the fingerprint")
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &collectSink{}
	boom := errors.New("boom")
	multi := MultiSink{ok, failingSink{boom}}

	err := multi.WriteLoadout(context.Background(), LoadoutRow{StudyID: "s"})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(ok.rows) != 1 {
		t.Error("healthy sink should still receive the row")
	}
}

type failingSink struct{ err error }

func (f failingSink) WriteLoadout(context.Context, LoadoutRow) error { return f.err }
