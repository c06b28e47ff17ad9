package trial

import (
	"github.com/lawnchairsociety/questsim/internal/combat"
	"github.com/lawnchairsociety/questsim/internal/dungeon"
)

// HeroSummary aggregates one hero across a trial.
type HeroSummary struct {
	ID             string
	Name           string
	AvgDamageDealt float64
	AvgDamageTaken float64
	AvgHealing     float64
	SurvivalRate   float64 // percent
	CritRate       float64 // crits per attack, percent
	DodgeRate      float64 // dodges per incoming attack, percent
}

// Summary aggregates a trial's simulations.
type Summary struct {
	Simulations    int
	Wins           int
	Losses         int
	TimedOut       int
	WinRate        float64 // percent
	AvgRounds      float64
	MinRounds      int
	MaxRounds      int
	AvgEncounterHP float64 // remaining encounter hp as a fraction of max, over losses
	AvgLoot        float64
	MinibossSpawns int
	Heroes         []HeroSummary
}

// Summarize aggregates results. Hero order follows the first result.
func Summarize(results []combat.SimResult) Summary {
	s := Summary{Simulations: len(results)}
	if len(results) == 0 {
		return s
	}

	s.MinRounds = results[0].Rounds
	heroes := make([]HeroSummary, len(results[0].Heroes))
	attacks := make([]int, len(heroes))
	crits := make([]int, len(heroes))
	incoming := make([]int, len(heroes))
	dodges := make([]int, len(heroes))
	survived := make([]int, len(heroes))
	for i, h := range results[0].Heroes {
		heroes[i].ID = h.ID
		heroes[i].Name = h.Name
	}

	totalRounds := 0
	totalLoot := 0.0
	remainingHP := 0.0
	for _, r := range results {
		if r.Success {
			s.Wins++
		} else {
			s.Losses++
			if r.Encounter.HPMax > 0 {
				remainingHP += r.EncounterHPRemaining() / r.Encounter.HPMax
			}
		}
		if r.TimedOut {
			s.TimedOut++
		}
		if r.Encounter.Miniboss != dungeon.NoMiniboss {
			s.MinibossSpawns++
		}

		totalRounds += r.Rounds
		totalLoot += r.Loot
		if r.Rounds < s.MinRounds {
			s.MinRounds = r.Rounds
		}
		if r.Rounds > s.MaxRounds {
			s.MaxRounds = r.Rounds
		}

		for i := range heroes {
			if i >= len(r.Heroes) {
				break
			}
			h := r.Heroes[i]
			heroes[i].AvgDamageDealt += h.DamageDealt
			heroes[i].AvgDamageTaken += h.DamageTaken
			heroes[i].AvgHealing += h.Healing
			attacks[i] += h.Attacks
			crits[i] += h.Crits
			incoming[i] += h.HitsTaken + h.Dodges
			dodges[i] += h.Dodges
			if h.Survived {
				survived[i]++
			}
		}
	}

	n := float64(len(results))
	s.WinRate = float64(s.Wins) / n * 100
	s.AvgRounds = float64(totalRounds) / n
	s.AvgLoot = totalLoot / n
	if s.Losses > 0 {
		s.AvgEncounterHP = remainingHP / float64(s.Losses)
	}

	for i := range heroes {
		heroes[i].AvgDamageDealt /= n
		heroes[i].AvgDamageTaken /= n
		heroes[i].AvgHealing /= n
		heroes[i].SurvivalRate = float64(survived[i]) / n * 100
		heroes[i].CritRate = percent(crits[i], attacks[i])
		heroes[i].DodgeRate = percent(dodges[i], incoming[i])
	}
	s.Heroes = heroes

	return s
}

// Hero returns the summary for the hero with the given ID.
func (s Summary) Hero(id string) (HeroSummary, bool) {
	for _, h := range s.Heroes {
		if h.ID == id {
			return h, true
		}
	}
	return HeroSummary{}, false
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
