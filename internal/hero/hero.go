// Package hero models combat-ready heroes, their skills, and the team they
// fight in.
package hero

import (
	"fmt"
	"strings"

	"github.com/lawnchairsociety/questsim/internal/element"
)

// Line is a hero's class line.
type Line string

const (
	Fighter     Line = "fighter"
	Rogue       Line = "rogue"
	Spellcaster Line = "spellcaster"
)

// ParseLine converts a case-insensitive class line name.
func ParseLine(s string) (Line, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fighter", "red":
		return Fighter, nil
	case "rogue", "green":
		return Rogue, nil
	case "spellcaster", "caster", "blue":
		return Spellcaster, nil
	}
	return "", fmt.Errorf("unknown class line %q", s)
}

// Champion identifies a champion hero. Empty means a regular hero.
type Champion string

const (
	Argon   Champion = "argon"
	Lilu    Champion = "lilu"
	Hemma   Champion = "hemma"
	Donovan Champion = "donovan"
	Sia     Champion = "sia"
)

// Stats are base combat stats before skills. Chances are normalized to [0,1].
type Stats struct {
	HP             float64
	Attack         float64
	Defense        float64
	Evasion        float64
	CritChance     float64
	CritMultiplier float64
	Threat         float64
	ElementQty     float64
}

// maxEvasion caps derived evasion so every hero can be hit.
const maxEvasion = 0.75

// Hero is a hero in combat-ready form.
type Hero struct {
	ID         string
	Name       string
	Class      string
	Line       Line
	Element    element.Element
	Champion   Champion
	InnateTier int
	Base       Stats
	Spirits    Effects // spirit buffs, applied like skills
	Skills     []string

	// Derived by Derive.
	HPMax             float64
	Attack            float64
	Defense           float64
	Evasion           float64
	CritChance        float64
	CritMultiplier    float64
	Threat            float64
	ElementQty        float64
	RegenPct          float64
	LootChance        float64
	FirstStrikeRounds int
	EvadeRounds       int
	Berserker         bool

	// Per-encounter state, reset at the start of every simulation.
	HP              float64
	GuaranteedCrit  bool
	GuaranteedEvade bool
	BerserkerStage  int
	BonusAttackPct  float64
}

// IsChampion reports whether the hero is a champion.
func (h *Hero) IsChampion() bool {
	return h.Champion != ""
}

// Alive reports whether the hero still has hp.
func (h *Hero) Alive() bool {
	return h.HP > 0
}

// SetSkills translates and validates names against the catalog, replaces
// the hero's skills, and re-derives its stats.
func (h *Hero) SetSkills(catalog *Catalog, names []string) error {
	skills := make([]string, 0, len(names))
	for _, name := range names {
		s, err := catalog.Lookup(name)
		if err != nil {
			return fmt.Errorf("hero %s: %w", h.ID, err)
		}
		if !s.AllowedFor(h.Line) {
			return fmt.Errorf("hero %s: skill %q not allowed for %s", h.ID, s.Name, h.Line)
		}
		skills = append(skills, s.Name)
	}

	h.Skills = skills
	return h.Derive(catalog)
}

// Derive recomputes every skill-dependent stat from Base, Spirits and Skills.
func (h *Hero) Derive(catalog *Catalog) error {
	total := h.Spirits
	for _, name := range h.Skills {
		s, err := catalog.Lookup(name)
		if err != nil {
			return fmt.Errorf("hero %s: %w", h.ID, err)
		}
		total.Add(s.Effects)
	}
	if strings.EqualFold(h.Class, "berserker") {
		total.Berserk = true
	}

	h.HPMax = h.Base.HP * (1 + total.HPPct)
	h.Attack = h.Base.Attack * (1 + total.AttackPct)
	h.Defense = h.Base.Defense * (1 + total.DefensePct)
	h.Threat = h.Base.Threat * (1 + total.ThreatPct)
	h.Evasion = clamp(h.Base.Evasion+total.Evasion, 0, maxEvasion)
	h.CritChance = clamp(h.Base.CritChance+total.CritChance, 0, 1)
	h.CritMultiplier = h.Base.CritMultiplier + total.CritMultiplier
	if h.CritMultiplier < 1 {
		h.CritMultiplier = 1
	}
	h.ElementQty = h.Base.ElementQty + total.ElementQty
	h.RegenPct = total.RegenPct
	h.LootChance = clamp(total.LootChance, 0, 1)
	h.FirstStrikeRounds = total.FirstStrikeRounds
	h.EvadeRounds = total.EvadeRounds
	h.Berserker = total.Berserk

	h.Reset()
	return nil
}

// Reset restores the per-encounter state to a fresh-fight baseline.
func (h *Hero) Reset() {
	h.HP = h.HPMax
	h.GuaranteedCrit = false
	h.GuaranteedEvade = false
	h.BerserkerStage = 0
	h.BonusAttackPct = 0
}

// Clone returns an independent copy of the hero.
func (h Hero) Clone() Hero {
	h.Skills = append([]string(nil), h.Skills...)
	return h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
