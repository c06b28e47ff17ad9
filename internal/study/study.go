// Package study enumerates every skill loadout for one hero and evaluates
// each one with a trial. Progress is a single integer cursor into the
// combination space, so a study can be stopped and resumed at any loadout.
package study

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lawnchairsociety/questsim/internal/combination"
	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/hero"
	"github.com/lawnchairsociety/questsim/internal/trial"
)

var (
	// ErrInvalidSlots is returned when the slot count cannot be filled from
	// the preset and candidate skills.
	ErrInvalidSlots = errors.New("invalid skill slot count")

	// ErrExhausted is returned when the cursor has passed the last loadout.
	ErrExhausted = errors.New("study has no loadouts left")
)

// Config describes one study as written in a docket.
type Config struct {
	ID           string
	Description  string
	Simulations  int
	SubjectHero  string
	PresetSkills []string
	Skills       []string
	SlotCount    int

	// Dungeons are ordered easiest first. Loadouts only move on to the next
	// dungeon when they reach EscalationThreshold.
	Dungeons            []string
	Difficulties        []dungeon.Difficulty
	Miniboss            dungeon.MinibossPolicy
	EscalationThreshold float64 // win rate percent; 0 disables escalation
}

// Label is how the study is named in progress events and logs.
func (c Config) Label() string {
	if c.Description != "" {
		return c.ID + ": " + c.Description
	}
	return c.ID
}

// Study is a resolved, validated study with its cursor.
type Study struct {
	cfg      Config
	subject  int
	team     *hero.Team
	catalog  *hero.Catalog
	dungeons []*dungeon.Dungeon

	preset []string // canonical names
	skills []string // sorted canonical candidates, preset removed
	k      int
	total  uint64
	cursor uint64

	fingerprint string
	simulations int
}

// New resolves every name in cfg against the team, catalog and dungeon
// registry. Any failure is a configuration error and no simulation runs.
func New(cfg Config, team *hero.Team, catalog *hero.Catalog, registry *dungeon.Registry) (*Study, error) {
	if cfg.Simulations < 1 {
		return nil, fmt.Errorf("study %s: %w: got %d", cfg.ID, trial.ErrInvalidSimulationQty, cfg.Simulations)
	}
	if team == nil || team.Len() == 0 {
		return nil, fmt.Errorf("study %s: %w", cfg.ID, hero.ErrEmptyTeam)
	}

	subject := team.Index(cfg.SubjectHero)
	if subject < 0 {
		return nil, fmt.Errorf("study %s: %w: %q", cfg.ID, hero.ErrUnknownHero, cfg.SubjectHero)
	}
	line := team.Hero(subject).Line

	preset, err := catalog.TranslateAll(cfg.PresetSkills)
	if err != nil {
		return nil, fmt.Errorf("study %s preset skills: %w", cfg.ID, err)
	}
	preset = dedupe(preset)
	candidates, err := catalog.TranslateAll(cfg.Skills)
	if err != nil {
		return nil, fmt.Errorf("study %s skills: %w", cfg.ID, err)
	}

	for _, name := range preset {
		s, _ := catalog.Lookup(name)
		if !s.AllowedFor(line) {
			return nil, fmt.Errorf("study %s: preset skill %q not allowed for %s", cfg.ID, name, line)
		}
	}

	skills := make([]string, 0, len(candidates))
	for _, name := range dedupe(candidates) {
		if slices.Contains(preset, name) {
			continue
		}
		if s, _ := catalog.Lookup(name); !s.AllowedFor(line) {
			continue
		}
		skills = append(skills, name)
	}
	slices.Sort(skills)

	k := cfg.SlotCount - len(preset)
	if k < 0 || k > len(skills) {
		return nil, fmt.Errorf("study %s: %w: %d slots with %d preset and %d candidate skills",
			cfg.ID, ErrInvalidSlots, cfg.SlotCount, len(preset), len(skills))
	}
	total, err := combination.CountChecked(len(skills), k)
	if err != nil {
		return nil, fmt.Errorf("study %s: %w", cfg.ID, err)
	}

	if len(cfg.Dungeons) == 0 {
		return nil, fmt.Errorf("study %s: %w: no dungeons listed", cfg.ID, dungeon.ErrUnknownDungeon)
	}
	dungeons := make([]*dungeon.Dungeon, 0, len(cfg.Dungeons))
	for _, id := range cfg.Dungeons {
		d, err := registry.Get(id)
		if err != nil {
			return nil, fmt.Errorf("study %s: %w", cfg.ID, err)
		}
		if err := d.CheckTiers(cfg.Difficulties...); err != nil {
			return nil, fmt.Errorf("study %s: %w", cfg.ID, err)
		}
		dungeons = append(dungeons, d)
	}

	s := &Study{
		cfg:      cfg,
		subject:  subject,
		team:     team,
		catalog:  catalog,
		dungeons: dungeons,
		preset:   preset,
		skills:   skills,
		k:        k,
		total:    total,
	}
	s.fingerprint = Fingerprint(s)
	return s, nil
}

// Config returns the study configuration.
func (s *Study) Config() Config {
	return s.cfg
}

// Skills returns the sorted candidate skill names.
func (s *Study) Skills() []string {
	return slices.Clone(s.skills)
}

// VaryingSlots is the number of slots filled from the candidates.
func (s *Study) VaryingSlots() int {
	return s.k
}

// Total is the number of loadouts in the study.
func (s *Study) Total() uint64 {
	return s.total
}

// Cursor is the index of the next loadout to evaluate.
func (s *Study) Cursor() uint64 {
	return s.cursor
}

// Remaining is the number of loadouts not yet evaluated.
func (s *Study) Remaining() uint64 {
	return s.total - s.cursor
}

// Done reports whether every loadout has been evaluated.
func (s *Study) Done() bool {
	return s.cursor >= s.total
}

// SetCursor positions the study, typically when resuming. cursor may equal
// Total, meaning the study is finished.
func (s *Study) SetCursor(cursor uint64) error {
	if cursor > s.total {
		return fmt.Errorf("cursor %d beyond %d loadouts", cursor, s.total)
	}
	s.cursor = cursor
	return nil
}

// CurrentLoadout returns the preset skills followed by the candidates at
// the cursor.
func (s *Study) CurrentLoadout() ([]string, error) {
	return s.Loadout(s.cursor)
}

// Loadout decodes the loadout at index without moving the cursor.
func (s *Study) Loadout(index uint64) ([]string, error) {
	if index >= s.total {
		return nil, ErrExhausted
	}

	loadout := make([]string, 0, len(s.preset)+s.k)
	loadout = append(loadout, s.preset...)
	for _, i := range combination.Unrank(index, len(s.skills), s.k) {
		loadout = append(loadout, s.skills[i])
	}
	return loadout, nil
}

// Advance moves the cursor to the next loadout.
func (s *Study) Advance() error {
	if s.Done() {
		return ErrExhausted
	}
	s.cursor++
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
