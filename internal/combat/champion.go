package combat

import "github.com/lawnchairsociety/questsim/internal/hero"

// Champion passives fade after a number of rounds proportional to the
// champion's innate tier.
const (
	argonReductionPerTier = 0.10
	argonRoundsPerTier    = 2

	donovanAttackPerTier = 0.05
	donovanRoundsPerTier = 3

	liluHealPerTier   = 0.04
	liluRoundsPerTier = 3

	hemmaDrainPerTier  = 0.02
	hemmaRoundsPerTier = 2

	siaBarrierPerTier = 0.10
	siaRoundsPerTier  = 2
)

// passiveActive reports whether a passive lasting roundsPerTier*tier rounds
// still applies this round.
func (s *Simulation) passiveActive(roundsPerTier int) bool {
	tier := s.composition.ChampionTier
	return tier > 0 && s.round <= roundsPerTier*tier
}

// refreshChampionBonuses sets the time-limited champion modifiers used by the
// attack steps.
func (s *Simulation) refreshChampionBonuses() {
	s.damageReduction = 0
	s.teamAttackBonus = 0

	tier := float64(s.composition.ChampionTier)
	switch s.composition.Champion {
	case hero.Argon:
		if s.passiveActive(argonRoundsPerTier) {
			s.damageReduction = clamp(argonReductionPerTier*tier, 0, maxDamageReduction)
		}
	case hero.Donovan:
		if s.passiveActive(donovanRoundsPerTier) {
			s.teamAttackBonus = donovanAttackPerTier * tier
		}
	}
}

// resolveChampionPassives applies drain and heal effects after the
// encounter has attacked.
func (s *Simulation) resolveChampionPassives() {
	tier := float64(s.composition.ChampionTier)
	champion := s.championIndex()

	switch s.composition.Champion {
	case hero.Lilu:
		if !s.passiveActive(liluRoundsPerTier) {
			return
		}
		for i := 0; i < s.team.Len(); i++ {
			h := s.team.Hero(i)
			if h.Alive() {
				s.heal(i, liluHealPerTier*tier*h.HPMax)
			}
		}

	case hero.Hemma:
		if !s.passiveActive(hemmaRoundsPerTier) || champion < 0 || !s.team.Hero(champion).Alive() {
			return
		}
		drain := hemmaDrainPerTier * tier * s.enc.HPMax
		if drain > s.enc.HP {
			drain = s.enc.HP
		}
		if drain <= 0 {
			return
		}
		s.enc.HP -= drain
		s.stats[champion].DamageDealt += drain

		alive := s.aliveIndexes()
		for _, i := range alive {
			s.heal(i, drain/float64(len(alive)))
		}

	case hero.Sia:
		if !s.passiveActive(siaRoundsPerTier) || !s.enc.Barrier.Up() {
			return
		}
		chip := siaBarrierPerTier * tier * s.enc.Barrier.HPMax
		if chip > s.enc.Barrier.HP {
			chip = s.enc.Barrier.HP
		}
		s.enc.Barrier.HP -= chip
		if champion >= 0 {
			s.stats[champion].DamageDealt += chip
		}
	}
}

func (s *Simulation) championIndex() int {
	for i := 0; i < s.team.Len(); i++ {
		if s.team.Hero(i).IsChampion() {
			return i
		}
	}
	return -1
}
