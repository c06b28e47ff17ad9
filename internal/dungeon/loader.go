package dungeon

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questsim/internal/element"
)

// TierDefinition is a difficulty tier as written in dungeons.yaml.
// Chance and evasion fields are percentages (0-100).
type TierDefinition struct {
	HP              float64 `yaml:"hp"`
	Damage          float64 `yaml:"damage"`
	DefenseCap      float64 `yaml:"defense_cap"`
	CritChance      float64 `yaml:"crit_chance"`
	CritMultiplier  float64 `yaml:"crit_multiplier"`
	Evasion         float64 `yaml:"evasion"`
	AoEDamage       float64 `yaml:"aoe_damage"`
	AoEChance       float64 `yaml:"aoe_chance"`
	BarrierHP       float64 `yaml:"barrier_hp"`
	BarrierModifier float64 `yaml:"barrier_modifier"`
	MinibossChance  float64 `yaml:"miniboss_chance"`
	Boss            bool    `yaml:"boss"`
	Extreme         bool    `yaml:"extreme"`
}

// DungeonDefinition is one dungeon as written in dungeons.yaml.
type DungeonDefinition struct {
	Zone           string                    `yaml:"zone"`
	BarrierOptions []string                  `yaml:"barrier_options"`
	Minibosses     []string                  `yaml:"minibosses"`
	Difficulties   map[string]TierDefinition `yaml:"difficulties"`
}

// DungeonsConfig is the structure of the dungeons.yaml file.
type DungeonsConfig struct {
	Dungeons map[string]DungeonDefinition `yaml:"dungeons"`
}

// LoadDungeonsFromYAML reads dungeon templates from a YAML file.
func LoadDungeonsFromYAML(filename string) (*Registry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read dungeons file: %w", err)
	}
	return ParseDungeons(data)
}

// ParseDungeons builds a registry from dungeons.yaml content.
func ParseDungeons(data []byte) (*Registry, error) {
	var config DungeonsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse dungeons YAML: %w", err)
	}

	ids := make([]string, 0, len(config.Dungeons))
	for id := range config.Dungeons {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dungeons := make([]*Dungeon, 0, len(ids))
	for _, id := range ids {
		d, err := CreateDungeonFromDefinition(id, config.Dungeons[id])
		if err != nil {
			return nil, err
		}
		dungeons = append(dungeons, d)
	}

	return NewRegistry(dungeons...), nil
}

// CreateDungeonFromDefinition converts a YAML definition into a Dungeon,
// normalizing percentages to [0,1].
func CreateDungeonFromDefinition(id string, def DungeonDefinition) (*Dungeon, error) {
	d := &Dungeon{
		ID:    id,
		Zone:  def.Zone,
		Tiers: make(map[Difficulty]Tier, len(def.Difficulties)),
	}
	if d.Zone == "" {
		d.Zone = id
	}

	for _, name := range def.BarrierOptions {
		e, err := element.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("dungeon %s: %w", id, err)
		}
		if e != element.None {
			d.BarrierOptions = append(d.BarrierOptions, e)
		}
	}

	for _, name := range def.Minibosses {
		m, err := ParseMiniboss(name)
		if err != nil {
			return nil, fmt.Errorf("dungeon %s: %w", id, err)
		}
		if m != NoMiniboss {
			d.Minibosses = append(d.Minibosses, m)
		}
	}

	for name, t := range def.Difficulties {
		diff, err := ParseDifficulty(name)
		if err != nil {
			return nil, fmt.Errorf("dungeon %s: %w", id, err)
		}
		if t.BarrierHP > 0 && len(d.BarrierOptions) == 0 {
			return nil, fmt.Errorf("dungeon %s %s: barrier_hp set but no barrier_options", id, diff)
		}

		d.Tiers[diff] = Tier{
			HP:              t.HP,
			Damage:          t.Damage,
			DefenseCap:      t.DefenseCap,
			CritChance:      t.CritChance / 100,
			CritMultiplier:  t.CritMultiplier,
			Evasion:         t.Evasion / 100,
			AoEDamage:       t.AoEDamage,
			AoEChance:       t.AoEChance / 100,
			BarrierHP:       t.BarrierHP,
			BarrierModifier: t.BarrierModifier / 100,
			MinibossChance:  t.MinibossChance / 100,
			Boss:            t.Boss || diff == Boss,
			Extreme:         t.Extreme || diff == Extreme,
		}
	}

	return d, nil
}
