package hero

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSkill is returned when a skill name cannot be translated.
var ErrUnknownSkill = errors.New("unknown skill")

// Effects are additive stat adjustments. Pct fields scale a base stat;
// chance fields are normalized to [0,1] and added directly.
type Effects struct {
	AttackPct         float64
	HPPct             float64
	DefensePct        float64
	ThreatPct         float64
	Evasion           float64
	CritChance        float64
	CritMultiplier    float64
	RegenPct          float64 // share of max hp healed after each round
	LootChance        float64
	ElementQty        float64
	FirstStrikeRounds int // opening rounds with a guaranteed crit
	EvadeRounds       int // opening rounds with a guaranteed evade
	Berserk           bool
}

// Add accumulates o into e.
func (e *Effects) Add(o Effects) {
	e.AttackPct += o.AttackPct
	e.HPPct += o.HPPct
	e.DefensePct += o.DefensePct
	e.ThreatPct += o.ThreatPct
	e.Evasion += o.Evasion
	e.CritChance += o.CritChance
	e.CritMultiplier += o.CritMultiplier
	e.RegenPct += o.RegenPct
	e.LootChance += o.LootChance
	e.ElementQty += o.ElementQty
	if o.FirstStrikeRounds > e.FirstStrikeRounds {
		e.FirstStrikeRounds = o.FirstStrikeRounds
	}
	if o.EvadeRounds > e.EvadeRounds {
		e.EvadeRounds = o.EvadeRounds
	}
	e.Berserk = e.Berserk || o.Berserk
}

// Skill is a canonical tier-1 skill.
type Skill struct {
	Name    string
	Lines   []Line // lines allowed to equip it; empty means any
	Effects Effects
}

// AllowedFor reports whether a hero of the given line may equip the skill.
func (s *Skill) AllowedFor(line Line) bool {
	if len(s.Lines) == 0 {
		return true
	}
	for _, l := range s.Lines {
		if l == line {
			return true
		}
	}
	return false
}

// Catalog resolves skill names, including alternate spellings, to skills.
type Catalog struct {
	skills  map[string]*Skill
	aliases map[string]string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		skills:  make(map[string]*Skill),
		aliases: make(map[string]string),
	}
}

// Register adds a skill and its aliases.
func (c *Catalog) Register(s *Skill, aliases ...string) {
	key := normalizeSkillName(s.Name)
	c.skills[key] = s
	for _, a := range aliases {
		c.aliases[normalizeSkillName(a)] = key
	}
}

// tierSuffix matches trailing tier markers such as "T3", "tier 2" or "III".
var tierSuffix = regexp.MustCompile(`\s+(t\d+|tier\s*\d+|i{1,3}|iv|v)$`)

func normalizeSkillName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Translate maps any accepted spelling to the canonical tier-1 skill name.
func (c *Catalog) Translate(name string) (string, error) {
	s, err := c.Lookup(name)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}

// Lookup resolves a name to its skill.
func (c *Catalog) Lookup(name string) (*Skill, error) {
	key := normalizeSkillName(name)
	candidates := []string{key}
	if stripped := tierSuffix.ReplaceAllString(key, ""); stripped != key {
		candidates = append(candidates, stripped)
	}

	for _, k := range candidates {
		if s, ok := c.skills[k]; ok {
			return s, nil
		}
		if canonical, ok := c.aliases[k]; ok {
			return c.skills[canonical], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSkill, name)
}

// TranslateAll translates every name, failing on the first unknown one.
func (c *Catalog) TranslateAll(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		canonical, err := c.Translate(n)
		if err != nil {
			return nil, err
		}
		out = append(out, canonical)
	}
	return out, nil
}

// Names returns every canonical skill name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.skills))
	for _, s := range c.skills {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// SkillDefinition is a skill as written in skills.yaml. Percentages are 0-100.
type SkillDefinition struct {
	Aliases           []string `yaml:"aliases"`
	Lines             []string `yaml:"lines"`
	AttackPct         float64  `yaml:"attack_pct"`
	HPPct             float64  `yaml:"hp_pct"`
	DefensePct        float64  `yaml:"defense_pct"`
	ThreatPct         float64  `yaml:"threat_pct"`
	Evasion           float64  `yaml:"evasion"`
	CritChance        float64  `yaml:"crit_chance"`
	CritMultiplier    float64  `yaml:"crit_multiplier"`
	RegenPct          float64  `yaml:"regen_pct"`
	LootChance        float64  `yaml:"loot_chance"`
	ElementQty        float64  `yaml:"element_qty"`
	FirstStrikeRounds int      `yaml:"first_strike_rounds"`
	EvadeRounds       int      `yaml:"evade_rounds"`
	Berserk           bool     `yaml:"berserk"`
}

// Effects converts the definition's percentages to normalized effects.
func (d SkillDefinition) Effects() Effects {
	return Effects{
		AttackPct:         d.AttackPct / 100,
		HPPct:             d.HPPct / 100,
		DefensePct:        d.DefensePct / 100,
		ThreatPct:         d.ThreatPct / 100,
		Evasion:           d.Evasion / 100,
		CritChance:        d.CritChance / 100,
		CritMultiplier:    d.CritMultiplier,
		RegenPct:          d.RegenPct / 100,
		LootChance:        d.LootChance / 100,
		ElementQty:        d.ElementQty,
		FirstStrikeRounds: d.FirstStrikeRounds,
		EvadeRounds:       d.EvadeRounds,
		Berserk:           d.Berserk,
	}
}

// SkillsConfig is the structure of the skills.yaml file.
type SkillsConfig struct {
	Skills map[string]SkillDefinition `yaml:"skills"`
}

// LoadSkillsFromYAML reads a skill catalog from a YAML file.
func LoadSkillsFromYAML(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills file: %w", err)
	}
	return ParseSkills(data)
}

// ParseSkills builds a catalog from skills.yaml content.
func ParseSkills(data []byte) (*Catalog, error) {
	var config SkillsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse skills YAML: %w", err)
	}

	catalog := NewCatalog()
	for name, def := range config.Skills {
		skill := &Skill{Name: name, Effects: def.Effects()}
		for _, l := range def.Lines {
			line, err := ParseLine(l)
			if err != nil {
				return nil, fmt.Errorf("skill %q: %w", name, err)
			}
			skill.Lines = append(skill.Lines, line)
		}
		catalog.Register(skill, def.Aliases...)
	}

	return catalog, nil
}
