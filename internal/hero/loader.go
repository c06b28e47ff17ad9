package hero

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questsim/internal/element"
)

// HeroDefinition is a hero as written in team.yaml. Chances are 0-100.
type HeroDefinition struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	Class          string          `yaml:"class"`
	Line           string          `yaml:"line"`
	Element        string          `yaml:"element"`
	ElementQty     float64         `yaml:"element_qty"`
	Champion       string          `yaml:"champion"`
	InnateTier     int             `yaml:"innate_tier"`
	HP             float64         `yaml:"hp"`
	Attack         float64         `yaml:"attack"`
	Defense        float64         `yaml:"defense"`
	Evasion        float64         `yaml:"evasion"`
	CritChance     float64         `yaml:"crit_chance"`
	CritMultiplier float64         `yaml:"crit_multiplier"`
	Threat         float64         `yaml:"threat"`
	Spirits        SkillDefinition `yaml:"spirits"`
	Skills         []string        `yaml:"skills"`
}

// BoosterDefinition is a booster as written in team.yaml. Percentages are 0-100.
type BoosterDefinition struct {
	Name           string  `yaml:"name"`
	AttackPct      float64 `yaml:"attack_pct"`
	DefensePct     float64 `yaml:"defense_pct"`
	CritChance     float64 `yaml:"crit_chance"`
	CritMultiplier float64 `yaml:"crit_multiplier"`
}

// TeamConfig is the structure of the team.yaml file.
type TeamConfig struct {
	Booster *BoosterDefinition `yaml:"booster"`
	Heroes  []HeroDefinition   `yaml:"heroes"`
}

// LoadTeamFromYAML reads a team from a YAML file, resolving skills
// against the catalog.
func LoadTeamFromYAML(filename string, catalog *Catalog) (*Team, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read team file: %w", err)
	}
	return ParseTeam(data, catalog)
}

// ParseTeam builds a team from team.yaml content.
func ParseTeam(data []byte, catalog *Catalog) (*Team, error) {
	var config TeamConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse team YAML: %w", err)
	}

	heroes := make([]Hero, 0, len(config.Heroes))
	for i, def := range config.Heroes {
		h, err := CreateHeroFromDefinition(def, catalog)
		if err != nil {
			return nil, fmt.Errorf("hero %d: %w", i, err)
		}
		heroes = append(heroes, *h)
	}

	var booster *Booster
	if b := config.Booster; b != nil {
		booster = &Booster{
			Name:           b.Name,
			AttackPct:      b.AttackPct / 100,
			DefensePct:     b.DefensePct / 100,
			CritChance:     b.CritChance / 100,
			CritMultiplier: b.CritMultiplier,
		}
	}

	return NewTeam(heroes, booster)
}

// CreateHeroFromDefinition converts a YAML definition into a derived Hero.
func CreateHeroFromDefinition(def HeroDefinition, catalog *Catalog) (*Hero, error) {
	line, err := ParseLine(def.Line)
	if err != nil {
		return nil, err
	}
	elem, err := element.Parse(def.Element)
	if err != nil {
		return nil, err
	}

	h := &Hero{
		ID:         def.ID,
		Name:       def.Name,
		Class:      def.Class,
		Line:       line,
		Element:    elem,
		Champion:   Champion(def.Champion),
		InnateTier: def.InnateTier,
		Base: Stats{
			HP:             def.HP,
			Attack:         def.Attack,
			Defense:        def.Defense,
			Evasion:        def.Evasion / 100,
			CritChance:     def.CritChance / 100,
			CritMultiplier: def.CritMultiplier,
			Threat:         def.Threat,
			ElementQty:     def.ElementQty,
		},
		Spirits: def.Spirits.Effects(),
	}
	if h.ID == "" {
		h.ID = h.Name
	}
	if h.Name == "" {
		h.Name = h.ID
	}
	if h.ID == "" {
		return nil, fmt.Errorf("hero needs an id or name")
	}

	if err := h.SetSkills(catalog, def.Skills); err != nil {
		return nil, err
	}
	return h, nil
}
