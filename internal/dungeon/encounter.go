package dungeon

import (
	"fmt"

	"github.com/lawnchairsociety/questsim/internal/element"
)

// Rand is the randomness an encounter roll needs. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Barrier shields an encounter's hp until it is depleted.
type Barrier struct {
	Element  element.Element
	HP       float64
	HPMax    float64
	Modifier float64 // share of damage a non-matching attacker deals to it
}

// Up reports whether the barrier still absorbs damage.
func (b Barrier) Up() bool {
	return b.HP > 0
}

// Encounter is one concrete opponent. Only HP and Barrier.HP change, and only
// during the simulation that owns it.
type Encounter struct {
	DungeonID      string
	Zone           string
	Difficulty     Difficulty
	HP             float64
	HPMax          float64
	Damage         float64
	DefenseCap     float64
	CritChance     float64
	CritMultiplier float64
	Evasion        float64
	AoEFraction    float64 // area damage as a fraction of Damage
	AoEChance      float64
	Barrier        Barrier
	Boss           bool
	Extreme        bool
	Miniboss       Miniboss
	LootMultiplier float64
}

// AoEDamage is the damage each hero takes from an area attack before defense.
func (e *Encounter) AoEDamage() float64 {
	return e.Damage * e.AoEFraction
}

// Defeated reports whether the encounter's hp is exhausted.
func (e *Encounter) Defeated() bool {
	return e.HP <= 0
}

// NewEncounter resolves the dungeon's tier for diff into a fresh encounter,
// rolling the miniboss and barrier element with rng.
func (d *Dungeon) NewEncounter(diff Difficulty, policy MinibossPolicy, rng Rand) (*Encounter, error) {
	tier, err := d.Tier(diff)
	if err != nil {
		return nil, err
	}
	if tier.Damage <= 0 {
		return nil, fmt.Errorf("%w: dungeon %s %s has damage %v", ErrNonPositiveDamage, d.ID, diff, tier.Damage)
	}

	miniboss := d.rollMiniboss(tier, policy, rng)
	mods := miniboss.Modifiers()

	hp := tier.HP * mods.HP
	enc := &Encounter{
		DungeonID:      d.ID,
		Zone:           d.Zone,
		Difficulty:     diff,
		HP:             hp,
		HPMax:          hp,
		Damage:         tier.Damage * mods.Damage,
		DefenseCap:     tier.DefenseCap,
		CritChance:     clamp01(tier.CritChance * mods.CritChance),
		CritMultiplier: tier.CritMultiplier,
		Evasion:        clamp01(tier.Evasion*mods.Evasion + mods.EvasionBonus),
		AoEFraction:    tier.AoEDamage / tier.Damage,
		AoEChance:      clamp01(tier.AoEChance),
		Boss:           tier.Boss,
		Extreme:        tier.Extreme,
		Miniboss:       miniboss,
		LootMultiplier: mods.Loot,
	}
	if enc.CritMultiplier < 1 {
		enc.CritMultiplier = 1
	}

	if tier.BarrierHP > 0 && len(d.BarrierOptions) > 0 {
		enc.Barrier = Barrier{
			Element:  d.BarrierOptions[rng.IntN(len(d.BarrierOptions))],
			HP:       tier.BarrierHP,
			HPMax:    tier.BarrierHP,
			Modifier: clamp01(tier.BarrierModifier),
		}
	}

	return enc, nil
}

// rollMiniboss applies the policy. Boss tiers never carry a miniboss.
func (d *Dungeon) rollMiniboss(tier Tier, policy MinibossPolicy, rng Rand) Miniboss {
	if tier.Boss || policy.Mode == MinibossAbsent {
		return NoMiniboss
	}
	if policy.Mode == MinibossRandom && rng.Float64() >= tier.MinibossChance {
		return NoMiniboss
	}
	if policy.Archetype != NoMiniboss {
		return policy.Archetype
	}

	eligible := d.Minibosses
	if len(eligible) == 0 {
		eligible = Minibosses()
	}
	return eligible[rng.IntN(len(eligible))]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
