package hero

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTeam is returned when a team would have no heroes.
	ErrEmptyTeam = errors.New("team must have at least one hero")

	// ErrUnknownHero is returned when a hero identifier is not on the team.
	ErrUnknownHero = errors.New("unknown hero")

	// ErrMultipleChampions is returned when more than one champion is fielded.
	ErrMultipleChampions = errors.New("team may field at most one champion")
)

// Booster is a team-wide consumable bonus.
type Booster struct {
	Name           string
	AttackPct      float64
	DefensePct     float64
	CritChance     float64
	CritMultiplier float64
}

// Composition summarizes a team's hero list.
type Composition struct {
	Fighters     int
	Rogues       int
	Spellcasters int
	Champion     Champion
	ChampionTier int
}

// Team is an ordered list of heroes with an optional booster. The
// composition is a cache recomputed on every change to the hero list.
type Team struct {
	heroes      []Hero
	booster     *Booster
	composition Composition
}

// NewTeam creates a team, copying the heroes.
func NewTeam(heroes []Hero, booster *Booster) (*Team, error) {
	t := &Team{}
	if booster != nil {
		b := *booster
		t.booster = &b
	}
	if err := t.SetHeroes(heroes); err != nil {
		return nil, err
	}
	return t, nil
}

// SetHeroes replaces the hero list and recomputes the composition.
func (t *Team) SetHeroes(heroes []Hero) error {
	if len(heroes) == 0 {
		return ErrEmptyTeam
	}

	copied := make([]Hero, len(heroes))
	for i := range heroes {
		copied[i] = heroes[i].Clone()
	}

	composition, err := summarize(copied)
	if err != nil {
		return err
	}
	t.heroes = copied
	t.composition = composition
	return nil
}

// ReplaceHero swaps the hero at index i and recomputes the composition.
func (t *Team) ReplaceHero(i int, h Hero) error {
	if i < 0 || i >= len(t.heroes) {
		return fmt.Errorf("hero index %d out of range", i)
	}

	heroes := make([]Hero, len(t.heroes))
	copy(heroes, t.heroes)
	heroes[i] = h
	return t.SetHeroes(heroes)
}

func summarize(heroes []Hero) (Composition, error) {
	var c Composition
	for i := range heroes {
		h := &heroes[i]
		switch h.Line {
		case Fighter:
			c.Fighters++
		case Rogue:
			c.Rogues++
		case Spellcaster:
			c.Spellcasters++
		}
		if h.IsChampion() {
			if c.Champion != "" {
				return Composition{}, ErrMultipleChampions
			}
			c.Champion = h.Champion
			c.ChampionTier = h.InnateTier
		}
	}
	return c, nil
}

// Len returns the number of heroes.
func (t *Team) Len() int {
	return len(t.heroes)
}

// Hero returns a pointer to the hero at index i for in-place combat updates.
func (t *Team) Hero(i int) *Hero {
	return &t.heroes[i]
}

// Heroes returns a copy of the hero list.
func (t *Team) Heroes() []Hero {
	out := make([]Hero, len(t.heroes))
	for i := range t.heroes {
		out[i] = t.heroes[i].Clone()
	}
	return out
}

// Booster returns the team booster, or nil.
func (t *Team) Booster() *Booster {
	return t.booster
}

// Composition returns the current composition summary.
func (t *Team) Composition() Composition {
	return t.composition
}

// Index returns the position of the hero with the given ID, or -1.
func (t *Team) Index(id string) int {
	for i := range t.heroes {
		if t.heroes[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no mutable state with t.
func (t *Team) Clone() *Team {
	clone := &Team{
		heroes:      make([]Hero, len(t.heroes)),
		composition: t.composition,
	}
	for i := range t.heroes {
		clone.heroes[i] = t.heroes[i].Clone()
	}
	if t.booster != nil {
		b := *t.booster
		clone.booster = &b
	}
	return clone
}

// WithSkills returns a clone where the given hero's skills are replaced and
// its stats re-derived.
func (t *Team) WithSkills(heroID string, skills []string, catalog *Catalog) (*Team, error) {
	i := t.Index(heroID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHero, heroID)
	}

	h := t.heroes[i].Clone()
	if err := h.SetSkills(catalog, skills); err != nil {
		return nil, err
	}

	clone := t.Clone()
	if err := clone.ReplaceHero(i, h); err != nil {
		return nil, err
	}
	return clone, nil
}

// Reset restores every hero's per-encounter state.
func (t *Team) Reset() {
	for i := range t.heroes {
		t.heroes[i].Reset()
	}
}
