package combat

import "github.com/lawnchairsociety/questsim/internal/dungeon"

// HeroResult is one hero's share of a simulation outcome.
type HeroResult struct {
	ID             string
	Name           string
	DamageDealt    float64
	DamageTaken    float64
	Healing        float64
	HPRemaining    float64
	HPMax          float64
	Survived       bool
	Attacks        int
	Misses         int
	Crits          int
	HitsTaken      int
	CritsTaken     int
	Dodges         int
	Loot           float64
	BerserkerStage int
}

// SimResult is the immutable outcome of one simulation.
type SimResult struct {
	Success   bool
	TimedOut  bool
	Rounds    int
	Encounter dungeon.Encounter // final encounter state
	Heroes    []HeroResult
	Loot      float64
}

// EncounterHPRemaining is the encounter's hp when the fight ended, floored at zero.
func (r SimResult) EncounterHPRemaining() float64 {
	if r.Encounter.HP < 0 {
		return 0
	}
	return r.Encounter.HP
}

// Survivors counts heroes alive at the end.
func (r SimResult) Survivors() int {
	n := 0
	for _, h := range r.Heroes {
		if h.Survived {
			n++
		}
	}
	return n
}

// Hero returns the result for the hero with the given ID.
func (r SimResult) Hero(id string) (HeroResult, bool) {
	for _, h := range r.Heroes {
		if h.ID == id {
			return h, true
		}
	}
	return HeroResult{}, false
}
