package dungeon

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lawnchairsociety/questsim/internal/element"
)

// fixedRand returns the same roll every time.
type fixedRand struct {
	roll  float64
	index int
}

func (r fixedRand) Float64() float64 { return r.roll }
func (r fixedRand) IntN(n int) int   { return r.index % n }

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

const testDungeonsYAML = `
dungeons:
  haunted_castle:
    zone: Haunted Castle
    barrier_options: [dark, light]
    minibosses: [agile, huge]
    difficulties:
      easy:
        hp: 1000
        damage: 100
        defense_cap: 500
        crit_chance: 10
        crit_multiplier: 1.5
        evasion: 5
        aoe_damage: 40
        aoe_chance: 25
        miniboss_chance: 20
      hard:
        hp: 5000
        damage: 400
        defense_cap: 2000
        crit_chance: 15
        crit_multiplier: 2
        aoe_damage: 200
        aoe_chance: 30
        barrier_hp: 800
        barrier_modifier: 20
      boss:
        hp: 20000
        damage: 900
        defense_cap: 4000
        crit_multiplier: 2
`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := ParseDungeons([]byte(testDungeonsYAML))
	if err != nil {
		t.Fatalf("ParseDungeons failed: %v", err)
	}
	return reg
}

func TestParseDungeonsNormalizesPercentages(t *testing.T) {
	reg := loadTestRegistry(t)

	d, err := reg.Get("Haunted_Castle")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d.Zone != "Haunted Castle" {
		t.Errorf("Zone = %q", d.Zone)
	}

	easy, err := d.Tier(Easy)
	if err != nil {
		t.Fatalf("Tier(easy) failed: %v", err)
	}
	if !approx(easy.CritChance, 0.10) || !approx(easy.Evasion, 0.05) || !approx(easy.AoEChance, 0.25) {
		t.Errorf("percentages not normalized: %+v", easy)
	}

	boss, _ := d.Tier(Boss)
	if !boss.Boss {
		t.Error("boss tier should carry the boss flag")
	}
	if d.Has(Extreme) {
		t.Error("extreme tier should not exist")
	}
}

func TestParseDungeonsRejectsBarrierWithoutOptions(t *testing.T) {
	yamlContent := `
dungeons:
  bad:
    difficulties:
      easy: {hp: 10, damage: 1, barrier_hp: 5}
`
	if _, err := ParseDungeons([]byte(yamlContent)); err == nil {
		t.Fatal("expected error for barrier without options")
	}
}

func TestLoadDungeonsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dungeons.yaml")
	if err := os.WriteFile(path, []byte(testDungeonsYAML), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadDungeonsFromYAML(path)
	if err != nil {
		t.Fatalf("LoadDungeonsFromYAML failed: %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}

	if _, err := reg.Get("missing"); !errors.Is(err, ErrUnknownDungeon) {
		t.Errorf("expected ErrUnknownDungeon, got %v", err)
	}
}

func TestSampleDungeonsBarrierModifiers(t *testing.T) {
	reg, err := LoadDungeonsFromYAML(filepath.Join("..", "..", "data", "dungeons.yaml"))
	if err != nil {
		t.Fatalf("LoadDungeonsFromYAML failed: %v", err)
	}

	barriers := 0
	for id, d := range reg.dungeons {
		for diff, tier := range d.Tiers {
			if tier.BarrierHP <= 0 {
				continue
			}
			barriers++
			if tier.BarrierModifier < 0.05 || tier.BarrierModifier > 1 {
				t.Errorf("%s %s: BarrierModifier = %v, want within [0.05, 1]", id, diff, tier.BarrierModifier)
			}
		}
	}
	if barriers == 0 {
		t.Error("sample data defines no barrier tiers")
	}
}

func TestNewEncounterBasics(t *testing.T) {
	d, _ := loadTestRegistry(t).Get("haunted_castle")

	enc, err := d.NewEncounter(Easy, MinibossPolicy{Mode: MinibossAbsent}, fixedRand{roll: 0})
	if err != nil {
		t.Fatalf("NewEncounter failed: %v", err)
	}

	if enc.HP != 1000 || enc.HPMax != 1000 {
		t.Errorf("hp = %v/%v, want 1000/1000", enc.HP, enc.HPMax)
	}
	if !approx(enc.AoEFraction, 0.4) {
		t.Errorf("AoEFraction = %v, want 0.4", enc.AoEFraction)
	}
	if !approx(enc.AoEDamage(), 40) {
		t.Errorf("AoEDamage() = %v, want 40", enc.AoEDamage())
	}
	if enc.Miniboss != NoMiniboss {
		t.Errorf("expected no miniboss, got %q", enc.Miniboss)
	}
	if enc.Barrier.Up() {
		t.Error("easy tier should have no barrier")
	}
}

func TestNewEncounterMinibossPolicy(t *testing.T) {
	d, _ := loadTestRegistry(t).Get("haunted_castle")

	tests := []struct {
		name   string
		policy MinibossPolicy
		rng    fixedRand
		want   Miniboss
	}{
		{"random roll under chance", MinibossPolicy{Mode: MinibossRandom}, fixedRand{roll: 0.1, index: 1}, Huge},
		{"random roll over chance", MinibossPolicy{Mode: MinibossRandom}, fixedRand{roll: 0.5}, NoMiniboss},
		{"forced picks eligible", MinibossPolicy{Mode: MinibossForced}, fixedRand{roll: 0.99, index: 0}, Agile},
		{"forced archetype", MinibossPolicy{Mode: MinibossForced, Archetype: Legendary}, fixedRand{roll: 0.99}, Legendary},
		{"absent", MinibossPolicy{Mode: MinibossAbsent}, fixedRand{roll: 0}, NoMiniboss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := d.NewEncounter(Easy, tt.policy, tt.rng)
			if err != nil {
				t.Fatalf("NewEncounter failed: %v", err)
			}
			if enc.Miniboss != tt.want {
				t.Errorf("Miniboss = %q, want %q", enc.Miniboss, tt.want)
			}
		})
	}
}

func TestNewEncounterAppliesMinibossModifiers(t *testing.T) {
	d, _ := loadTestRegistry(t).Get("haunted_castle")

	enc, err := d.NewEncounter(Easy, MinibossPolicy{Mode: MinibossForced, Archetype: Legendary}, fixedRand{})
	if err != nil {
		t.Fatalf("NewEncounter failed: %v", err)
	}

	if !approx(enc.HP, 1500) || !approx(enc.HPMax, 1500) {
		t.Errorf("hp = %v, want 1500", enc.HP)
	}
	if !approx(enc.Damage, 125) {
		t.Errorf("damage = %v, want 125", enc.Damage)
	}
	if !approx(enc.CritChance, 0.15) {
		t.Errorf("crit chance = %v, want 0.15", enc.CritChance)
	}
	if !approx(enc.Evasion, 0.15) {
		t.Errorf("evasion = %v, want 0.15", enc.Evasion)
	}
	// AoE stays a fixed fraction of the scaled damage.
	if !approx(enc.AoEDamage(), 50) {
		t.Errorf("AoEDamage() = %v, want 50", enc.AoEDamage())
	}
}

func TestNewEncounterBossNeverHasMiniboss(t *testing.T) {
	d, _ := loadTestRegistry(t).Get("haunted_castle")

	enc, err := d.NewEncounter(Boss, MinibossPolicy{Mode: MinibossForced}, fixedRand{})
	if err != nil {
		t.Fatalf("NewEncounter failed: %v", err)
	}
	if enc.Miniboss != NoMiniboss || !enc.Boss {
		t.Errorf("boss encounter = %+v", enc)
	}
}

func TestNewEncounterBarrier(t *testing.T) {
	d, _ := loadTestRegistry(t).Get("haunted_castle")

	enc, err := d.NewEncounter(Hard, MinibossPolicy{Mode: MinibossAbsent}, fixedRand{index: 1})
	if err != nil {
		t.Fatalf("NewEncounter failed: %v", err)
	}
	if !enc.Barrier.Up() {
		t.Fatal("expected barrier")
	}
	if enc.Barrier.Element != element.Light {
		t.Errorf("barrier element = %q, want light", enc.Barrier.Element)
	}
	if enc.Barrier.HP != 800 || !approx(enc.Barrier.Modifier, 0.2) {
		t.Errorf("barrier = %+v", enc.Barrier)
	}
}

func TestNewEncounterErrors(t *testing.T) {
	d := &Dungeon{
		ID:    "broken",
		Tiers: map[Difficulty]Tier{Easy: {HP: 100, Damage: 0}},
	}

	if _, err := d.NewEncounter(Easy, MinibossPolicy{}, fixedRand{}); !errors.Is(err, ErrNonPositiveDamage) {
		t.Errorf("expected ErrNonPositiveDamage, got %v", err)
	}
	if _, err := d.NewEncounter(Hard, MinibossPolicy{}, fixedRand{}); !errors.Is(err, ErrUnknownDifficulty) {
		t.Errorf("expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestCheckTiers(t *testing.T) {
	d := &Dungeon{
		ID: "mixed",
		Tiers: map[Difficulty]Tier{
			Easy: {HP: 100, Damage: 10},
			Hard: {HP: 100, Damage: 0},
		},
	}

	tests := []struct {
		name  string
		diffs []Difficulty
		want  error
	}{
		{"valid tier", []Difficulty{Easy}, nil},
		{"zero damage tier", []Difficulty{Easy, Hard}, ErrNonPositiveDamage},
		{"every tier", nil, ErrNonPositiveDamage},
		{"missing tier", []Difficulty{Boss}, ErrUnknownDifficulty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.CheckTiers(tt.diffs...); !errors.Is(err, tt.want) {
				t.Errorf("CheckTiers() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseMinibossPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    MinibossPolicy
		wantErr bool
	}{
		{"", MinibossPolicy{Mode: MinibossRandom}, false},
		{"random", MinibossPolicy{Mode: MinibossRandom}, false},
		{"none", MinibossPolicy{Mode: MinibossAbsent}, false},
		{"forced", MinibossPolicy{Mode: MinibossForced}, false},
		{"Dire", MinibossPolicy{Mode: MinibossForced, Archetype: Dire}, false},
		{"gigantic", MinibossPolicy{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMinibossPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMinibossPolicy(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			if !tt.wantErr {
				back, err := ParseMinibossPolicy(got.String())
				if err != nil || back != got {
					t.Errorf("String() round trip gave %+v, %v", back, err)
				}
			}
		})
	}
}
