package dungeon

import (
	"fmt"
	"strings"
)

// Miniboss is a miniboss archetype. The zero value means no miniboss.
type Miniboss string

const (
	NoMiniboss Miniboss = ""
	Agile      Miniboss = "agile"
	Dire       Miniboss = "dire"
	Huge       Miniboss = "huge"
	Legendary  Miniboss = "legendary"
	Wealthy    Miniboss = "wealthy"
)

// Minibosses returns every archetype in a stable order.
func Minibosses() []Miniboss {
	return []Miniboss{Agile, Dire, Huge, Legendary, Wealthy}
}

// Modifiers is the fixed stat adjustment of a miniboss archetype.
// Multipliers scale the tier value; EvasionBonus is added after scaling.
type Modifiers struct {
	HP           float64
	Damage       float64
	CritChance   float64
	Evasion      float64
	EvasionBonus float64
	Loot         float64
}

var noModifiers = Modifiers{HP: 1, Damage: 1, CritChance: 1, Evasion: 1, Loot: 1}

var minibossModifiers = map[Miniboss]Modifiers{
	Agile:     {HP: 1, Damage: 1, CritChance: 1, Evasion: 1, EvasionBonus: 0.40, Loot: 1},
	Dire:      {HP: 1.5, Damage: 1.5, CritChance: 1, Evasion: 1, Loot: 1.25},
	Huge:      {HP: 2, Damage: 1, CritChance: 1, Evasion: 1, Loot: 1.25},
	Legendary: {HP: 1.5, Damage: 1.25, CritChance: 1.5, Evasion: 1, EvasionBonus: 0.10, Loot: 2},
	Wealthy:   {HP: 1, Damage: 1, CritChance: 1, Evasion: 1, Loot: 3},
}

// Modifiers returns the archetype's stat adjustment. NoMiniboss and unknown
// archetypes leave every stat unchanged.
func (m Miniboss) Modifiers() Modifiers {
	if mods, ok := minibossModifiers[m]; ok {
		return mods
	}
	return noModifiers
}

// ParseMiniboss converts a case-insensitive archetype name.
func ParseMiniboss(s string) (Miniboss, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "none" {
		return NoMiniboss, nil
	}
	for _, m := range Minibosses() {
		if string(m) == name {
			return m, nil
		}
	}
	return NoMiniboss, fmt.Errorf("unknown miniboss archetype %q", s)
}

// MinibossMode is the tri-state miniboss selection.
type MinibossMode int

const (
	// MinibossRandom rolls the tier's miniboss chance.
	MinibossRandom MinibossMode = iota
	// MinibossForced always spawns a miniboss on non-boss tiers.
	MinibossForced
	// MinibossAbsent never spawns a miniboss.
	MinibossAbsent
)

// MinibossPolicy selects whether and which miniboss appears.
// Archetype pins a specific archetype when a miniboss spawns; empty picks
// uniformly from the dungeon's eligible archetypes.
type MinibossPolicy struct {
	Mode      MinibossMode
	Archetype Miniboss
}

// ParseMinibossPolicy accepts "random", "none", "forced" or an archetype name
// (which forces that archetype).
func ParseMinibossPolicy(s string) (MinibossPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return MinibossPolicy{Mode: MinibossRandom}, nil
	case "none", "absent", "off":
		return MinibossPolicy{Mode: MinibossAbsent}, nil
	case "forced", "always", "on":
		return MinibossPolicy{Mode: MinibossForced}, nil
	}

	archetype, err := ParseMiniboss(s)
	if err != nil {
		return MinibossPolicy{}, err
	}
	return MinibossPolicy{Mode: MinibossForced, Archetype: archetype}, nil
}

// String renders the policy in the form ParseMinibossPolicy accepts.
func (p MinibossPolicy) String() string {
	switch p.Mode {
	case MinibossAbsent:
		return "none"
	case MinibossForced:
		if p.Archetype != NoMiniboss {
			return string(p.Archetype)
		}
		return "forced"
	default:
		return "random"
	}
}
