// Package dungeon holds dungeon templates and resolves them into concrete
// encounters for a requested difficulty and miniboss policy.
package dungeon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lawnchairsociety/questsim/internal/element"
)

var (
	// ErrNonPositiveDamage is returned when a tier's base damage is zero or negative.
	ErrNonPositiveDamage = errors.New("encounter base damage must be positive")

	// ErrUnknownDifficulty is returned for difficulty names or tiers a dungeon does not define.
	ErrUnknownDifficulty = errors.New("unknown difficulty")

	// ErrUnknownDungeon is returned when a dungeon identifier is not loaded.
	ErrUnknownDungeon = errors.New("unknown dungeon")
)

// Difficulty selects one of a dungeon's stat tables.
type Difficulty string

const (
	Easy    Difficulty = "easy"
	Medium  Difficulty = "medium"
	Hard    Difficulty = "hard"
	Extreme Difficulty = "extreme"
	Boss    Difficulty = "boss"
)

// Difficulties returns every difficulty from easiest to hardest.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard, Extreme, Boss}
}

// ParseDifficulty converts a case-insensitive name to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, d := range Difficulties() {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

// Tier is one difficulty's stat table. Percentages are normalized to [0,1].
type Tier struct {
	HP              float64
	Damage          float64
	DefenseCap      float64
	CritChance      float64
	CritMultiplier  float64
	Evasion         float64
	AoEDamage       float64 // flat damage of the area attack, before miniboss scaling
	AoEChance       float64
	BarrierHP       float64
	BarrierModifier float64 // share of damage a non-matching hero deals to the barrier
	MinibossChance  float64
	Boss            bool
	Extreme         bool
}

// Dungeon is an immutable template shared by every encounter derived from it.
type Dungeon struct {
	ID             string
	Zone           string
	BarrierOptions []element.Element
	Minibosses     []Miniboss // archetypes eligible for random spawns
	Tiers          map[Difficulty]Tier
}

// Tier returns the stat table for a difficulty.
func (d *Dungeon) Tier(diff Difficulty) (Tier, error) {
	t, ok := d.Tiers[diff]
	if !ok {
		return Tier{}, fmt.Errorf("%w: dungeon %s has no %q tier", ErrUnknownDifficulty, d.ID, diff)
	}
	return t, nil
}

// CheckTiers verifies the listed difficulties, or every defined tier when
// none are listed, can produce an encounter.
func (d *Dungeon) CheckTiers(diffs ...Difficulty) error {
	if len(diffs) == 0 {
		for _, diff := range Difficulties() {
			if d.Has(diff) {
				diffs = append(diffs, diff)
			}
		}
	}
	for _, diff := range diffs {
		t, err := d.Tier(diff)
		if err != nil {
			return err
		}
		if t.Damage <= 0 {
			return fmt.Errorf("%w: dungeon %s %s has damage %v", ErrNonPositiveDamage, d.ID, diff, t.Damage)
		}
	}
	return nil
}

// Has reports whether the dungeon defines the difficulty.
func (d *Dungeon) Has(diff Difficulty) bool {
	_, ok := d.Tiers[diff]
	return ok
}

// Registry indexes loaded dungeons by identifier.
type Registry struct {
	dungeons map[string]*Dungeon
}

// NewRegistry creates a registry from already-built dungeons.
func NewRegistry(dungeons ...*Dungeon) *Registry {
	r := &Registry{dungeons: make(map[string]*Dungeon, len(dungeons))}
	for _, d := range dungeons {
		r.dungeons[strings.ToLower(d.ID)] = d
	}
	return r
}

// Get looks up a dungeon by case-insensitive identifier.
func (r *Registry) Get(id string) (*Dungeon, error) {
	d, ok := r.dungeons[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDungeon, id)
	}
	return d, nil
}

// Count returns the number of registered dungeons.
func (r *Registry) Count() int {
	return len(r.dungeons)
}
