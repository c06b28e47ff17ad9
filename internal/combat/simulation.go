// Package combat resolves one encounter between a team and an opponent,
// round by round, until one side is exhausted.
package combat

import (
	"errors"

	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/element"
	"github.com/lawnchairsociety/questsim/internal/hero"
)

// DefaultMaxRounds caps a fight that cannot progress, such as an unbreakable
// barrier with no matching hero.
const DefaultMaxRounds = 1000

const (
	// maxDamageReduction bounds defense and champion mitigation combined.
	maxDamageReduction = 0.75

	berserkerInterval   = 3
	berserkerThreshold  = 0.5
	berserkerMaxStage   = 3
	berserkerStageBonus = 0.15

	// elementQtyStep raises the barrier modifier of a non-matching hero
	// per point of element quantity.
	elementQtyStep = 0.25
)

// Rand is the randomness a simulation consumes. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Options tune a simulation.
type Options struct {
	// MaxRounds ends the fight as a loss after this many rounds. Zero means unbounded.
	MaxRounds int
}

// State is the simulation's lifecycle state.
type State int

const (
	StateSetup State = iota
	StateRoundLoop
	StateWon
	StateLost
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateRoundLoop:
		return "round_loop"
	case StateWon:
		return "won"
	case StateLost:
		return "lost"
	}
	return "unknown"
}

// Simulation is one fight. It owns private copies of the team and encounter.
type Simulation struct {
	team        *hero.Team
	composition hero.Composition
	booster     hero.Booster
	enc         dungeon.Encounter
	rng         Rand
	opts        Options

	state    State
	round    int
	timedOut bool

	order        []int     // hero attack order, shuffled once
	targets      []int     // alive hero indexes eligible as targets
	targetWeight []float64 // cumulative targeting probability per entry in targets
	targetsDirty bool

	damageReduction float64
	teamAttackBonus float64

	stats []HeroResult
	loot  float64
}

// New prepares a simulation. The team and encounter are copied, so callers
// may reuse them across simulations.
func New(team *hero.Team, enc *dungeon.Encounter, rng Rand, opts Options) (*Simulation, error) {
	if team == nil || team.Len() == 0 {
		return nil, hero.ErrEmptyTeam
	}
	if enc == nil {
		return nil, errors.New("simulation needs an encounter")
	}
	if rng == nil {
		return nil, errors.New("simulation needs a random source")
	}

	s := &Simulation{
		team:         team.Clone(),
		composition:  team.Composition(),
		enc:          *enc,
		rng:          rng,
		opts:         opts,
		state:        StateSetup,
		targetsDirty: true,
	}
	if b := team.Booster(); b != nil {
		s.booster = *b
	}

	s.team.Reset()
	s.stats = make([]HeroResult, s.team.Len())
	s.order = make([]int, s.team.Len())
	for i := range s.order {
		h := s.team.Hero(i)
		s.stats[i] = HeroResult{ID: h.ID, Name: h.Name, HPMax: h.HPMax}
		s.order[i] = i
	}
	s.rng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})

	return s, nil
}

// Run is shorthand for New followed by Simulation.Run.
func Run(team *hero.Team, enc *dungeon.Encounter, rng Rand, opts Options) (SimResult, error) {
	s, err := New(team, enc, rng, opts)
	if err != nil {
		return SimResult{}, err
	}
	return s.Run(), nil
}

// State returns the current lifecycle state.
func (s *Simulation) State() State {
	return s.state
}

// Round returns the number of rounds started so far.
func (s *Simulation) Round() int {
	return s.round
}

// Run plays rounds until the fight resolves and returns the result.
func (s *Simulation) Run() SimResult {
	for !s.Step() {
	}
	return s.Result()
}

// Step plays one round and reports whether the fight has resolved.
func (s *Simulation) Step() bool {
	if s.state == StateWon || s.state == StateLost {
		return true
	}
	s.state = StateRoundLoop
	s.round++

	if s.targetsDirty {
		s.refreshTargets()
	}
	s.refreshBonuses()
	s.resolveEncounterAttacks()
	s.resolveChampionPassives()
	s.resolveHeroAttacks()

	if s.enc.Defeated() {
		s.state = StateWon
		return true
	}
	if len(s.aliveIndexes()) == 0 {
		s.state = StateLost
		return true
	}

	s.resolveEndOfRound()

	if s.opts.MaxRounds > 0 && s.round >= s.opts.MaxRounds {
		s.timedOut = true
		s.state = StateLost
		return true
	}
	return false
}

// Result snapshots the outcome. It is meaningful once Step has returned true.
func (s *Simulation) Result() SimResult {
	heroes := make([]HeroResult, len(s.stats))
	for i := range s.stats {
		h := s.team.Hero(i)
		heroes[i] = s.stats[i]
		heroes[i].HPRemaining = h.HP
		heroes[i].Survived = h.Alive()
		heroes[i].BerserkerStage = h.BerserkerStage
	}

	return SimResult{
		Success:   s.state == StateWon,
		TimedOut:  s.timedOut,
		Rounds:    s.round,
		Encounter: s.enc,
		Heroes:    heroes,
		Loot:      s.loot,
	}
}

// refreshTargets rebuilds the threat-weighted targeting distribution over
// living heroes.
func (s *Simulation) refreshTargets() {
	s.targets = s.targets[:0]
	s.targetWeight = s.targetWeight[:0]

	total := 0.0
	for i := 0; i < s.team.Len(); i++ {
		h := s.team.Hero(i)
		if !h.Alive() {
			continue
		}
		w := h.Threat
		if w <= 0 {
			w = 1
		}
		total += w
		s.targets = append(s.targets, i)
		s.targetWeight = append(s.targetWeight, total)
	}
	for i := range s.targetWeight {
		s.targetWeight[i] /= total
	}
	s.targetsDirty = false
}

// pickTarget draws a living hero from the targeting distribution.
func (s *Simulation) pickTarget() int {
	if s.targetsDirty {
		s.refreshTargets()
	}
	if len(s.targets) == 0 {
		return -1
	}

	roll := s.rng.Float64()
	for i, w := range s.targetWeight {
		if roll < w {
			return s.targets[i]
		}
	}
	return s.targets[len(s.targets)-1]
}

// refreshBonuses applies bonuses that only hold on specific rounds.
func (s *Simulation) refreshBonuses() {
	for i := 0; i < s.team.Len(); i++ {
		h := s.team.Hero(i)
		h.GuaranteedCrit = s.round <= h.FirstStrikeRounds
		h.GuaranteedEvade = s.round <= h.EvadeRounds
	}
	s.refreshChampionBonuses()
}

// resolveEncounterAttacks runs the area attack, if it triggers, and the
// single-target attack.
func (s *Simulation) resolveEncounterAttacks() {
	if s.enc.AoEFraction > 0 && s.rng.Float64() < s.enc.AoEChance {
		for _, i := range s.aliveIndexes() {
			s.strikeHero(i, s.enc.AoEDamage())
		}
	}

	if target := s.pickTarget(); target >= 0 {
		s.strikeHero(target, s.enc.Damage)
	}
}

// strikeHero resolves one encounter hit against hero i.
func (s *Simulation) strikeHero(i int, damage float64) {
	h := s.team.Hero(i)
	st := &s.stats[i]

	if h.GuaranteedEvade {
		h.GuaranteedEvade = false
		st.Dodges++
		return
	}
	if s.rng.Float64() < h.Evasion {
		st.Dodges++
		return
	}

	if s.rng.Float64() < s.enc.CritChance {
		damage *= s.enc.CritMultiplier
		st.CritsTaken++
	}

	damage *= 1 - s.mitigation(h)
	if damage > h.HP {
		damage = h.HP
	}
	h.HP -= damage
	st.DamageTaken += damage
	st.HitsTaken++

	if !h.Alive() {
		h.HP = 0
		s.targetsDirty = true
	}
}

// mitigation is the share of incoming damage a hero ignores.
func (s *Simulation) mitigation(h *hero.Hero) float64 {
	reduction := 0.0
	if s.enc.DefenseCap > 0 {
		defense := h.Defense * (1 + s.booster.DefensePct)
		reduction = maxDamageReduction * clamp(defense/s.enc.DefenseCap, 0, 1)
	}
	reduction += s.damageReduction
	return clamp(reduction, 0, maxDamageReduction)
}

// resolveHeroAttacks lets every living hero attack in the shuffled order.
func (s *Simulation) resolveHeroAttacks() {
	for _, i := range s.order {
		if s.enc.Defeated() {
			return
		}
		h := s.team.Hero(i)
		if !h.Alive() {
			continue
		}
		st := &s.stats[i]
		st.Attacks++

		if s.rng.Float64() < s.enc.Evasion {
			st.Misses++
			continue
		}

		damage := h.Attack * (1 + s.booster.AttackPct + h.BonusAttackPct + s.teamAttackBonus)

		crit := h.GuaranteedCrit
		h.GuaranteedCrit = false
		if !crit {
			crit = s.rng.Float64() < clamp(h.CritChance+s.booster.CritChance, 0, 1)
		}
		if crit {
			damage *= h.CritMultiplier + s.booster.CritMultiplier
			st.Crits++
		}

		st.DamageDealt += s.damageEncounter(h, damage)

		if h.LootChance > 0 && s.rng.Float64() < h.LootChance {
			st.Loot += s.enc.LootMultiplier
			s.loot += s.enc.LootMultiplier
		}
	}
}

// damageEncounter applies a hero's hit, draining the barrier first, and
// returns the damage actually dealt.
func (s *Simulation) damageEncounter(h *hero.Hero, damage float64) float64 {
	if damage <= 0 {
		return 0
	}

	dealt := 0.0
	if b := &s.enc.Barrier; b.Up() {
		damage *= barrierModifier(h, b)
		absorbed := damage
		if absorbed > b.HP {
			absorbed = b.HP
		}
		b.HP -= absorbed
		dealt += absorbed
		damage -= absorbed
	}

	if damage > s.enc.HP {
		damage = s.enc.HP
	}
	s.enc.HP -= damage
	return dealt + damage
}

// barrierModifier is the share of a hit that reaches the barrier. A matching
// element hits at full strength; otherwise element quantity scales the
// barrier's modifier up to full strength.
func barrierModifier(h *hero.Hero, b *dungeon.Barrier) float64 {
	if h.Element != element.None && h.Element == b.Element {
		return 1
	}
	m := b.Modifier * (1 + elementQtyStep*max(h.ElementQty, 0))
	if m > 1 {
		return 1
	}
	return m
}

// resolveEndOfRound applies regeneration and berserker stage escalation.
func (s *Simulation) resolveEndOfRound() {
	for i := 0; i < s.team.Len(); i++ {
		h := s.team.Hero(i)
		if !h.Alive() {
			continue
		}
		if h.RegenPct > 0 {
			s.heal(i, h.RegenPct*h.HPMax)
		}
		if h.Berserker && s.round%berserkerInterval == 0 &&
			h.HP >= berserkerThreshold*h.HPMax && h.BerserkerStage < berserkerMaxStage {
			h.BerserkerStage++
			h.BonusAttackPct = berserkerStageBonus * float64(h.BerserkerStage)
		}
	}
}

// heal restores hp to a living hero, capped at its maximum.
func (s *Simulation) heal(i int, amount float64) {
	h := s.team.Hero(i)
	if !h.Alive() || amount <= 0 {
		return
	}
	if h.HP+amount > h.HPMax {
		amount = h.HPMax - h.HP
	}
	h.HP += amount
	s.stats[i].Healing += amount
}

func (s *Simulation) aliveIndexes() []int {
	alive := make([]int, 0, s.team.Len())
	for i := 0; i < s.team.Len(); i++ {
		if s.team.Hero(i).Alive() {
			alive = append(alive, i)
		}
	}
	return alive
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
