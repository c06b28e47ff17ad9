// Package docket runs a batch of studies and records which ones have
// finished, so a restarted run skips completed work.
package docket

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questsim/internal/dungeon"
	"github.com/lawnchairsociety/questsim/internal/study"
)

// StudyEntry is one study as written in the docket file.
type StudyEntry struct {
	ID                  string   `yaml:"id"`
	Description         string   `yaml:"description,omitempty"`
	Simulations         int      `yaml:"simulations"`
	SubjectHero         string   `yaml:"subject_hero"`
	PresetSkills        []string `yaml:"preset_skills,omitempty"`
	Skills              []string `yaml:"skills"`
	SlotCount           int      `yaml:"slot_count"`
	Dungeons            []string `yaml:"dungeons"`
	Difficulties        []string `yaml:"difficulties,omitempty"`
	Miniboss            string   `yaml:"miniboss,omitempty"`
	EscalationThreshold float64  `yaml:"escalation_threshold,omitempty"`

	Completed   bool   `yaml:"completed"`
	Cursor      uint64 `yaml:"cursor,omitempty"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
}

// Config converts the entry into a study configuration.
func (e StudyEntry) Config() (study.Config, error) {
	difficulties := make([]dungeon.Difficulty, 0, len(e.Difficulties))
	for _, s := range e.Difficulties {
		d, err := dungeon.ParseDifficulty(s)
		if err != nil {
			return study.Config{}, fmt.Errorf("study %s: %w", e.ID, err)
		}
		difficulties = append(difficulties, d)
	}

	policy, err := dungeon.ParseMinibossPolicy(e.Miniboss)
	if err != nil {
		return study.Config{}, fmt.Errorf("study %s: %w", e.ID, err)
	}

	return study.Config{
		ID:                  e.ID,
		Description:         e.Description,
		Simulations:         e.Simulations,
		SubjectHero:         e.SubjectHero,
		PresetSkills:        e.PresetSkills,
		Skills:              e.Skills,
		SlotCount:           e.SlotCount,
		Dungeons:            e.Dungeons,
		Difficulties:        difficulties,
		Miniboss:            policy,
		EscalationThreshold: e.EscalationThreshold,
	}, nil
}

// Docket is an ordered list of studies with their completion state.
type Docket struct {
	Name    string       `yaml:"name"`
	SavedAt time.Time    `yaml:"saved_at,omitempty"`
	Studies []StudyEntry `yaml:"studies"`
}

// Load reads a docket from a YAML file.
func Load(filename string) (*Docket, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read docket file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a docket and checks that study ids are present and unique.
func Parse(data []byte) (*Docket, error) {
	var d Docket
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse docket YAML: %w", err)
	}

	seen := make(map[string]bool, len(d.Studies))
	for i, s := range d.Studies {
		if s.ID == "" {
			return nil, fmt.Errorf("study %d has no id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate study id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return &d, nil
}

// Save writes the docket to filename. The file is replaced atomically so an
// interrupted save never leaves a truncated docket behind.
func (d *Docket) Save(filename string) error {
	d.SavedAt = time.Now().UTC().Truncate(time.Second)

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal docket: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write docket file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write docket file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write docket file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write docket file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace docket file: %w", err)
	}
	return nil
}

// Reset clears completion flags and cursors of the named studies, or of
// every study when no id is given. It returns the number of studies reset.
func (d *Docket) Reset(ids ...string) int {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	n := 0
	for i := range d.Studies {
		s := &d.Studies[i]
		if len(ids) > 0 && !want[s.ID] {
			continue
		}
		s.Completed = false
		s.Cursor = 0
		s.Fingerprint = ""
		n++
	}
	return n
}

// Study returns the entry with the given id.
func (d *Docket) Study(id string) (*StudyEntry, bool) {
	for i := range d.Studies {
		if d.Studies[i].ID == id {
			return &d.Studies[i], true
		}
	}
	return nil, false
}

// Pending counts studies not yet completed.
func (d *Docket) Pending() int {
	n := 0
	for _, s := range d.Studies {
		if !s.Completed {
			n++
		}
	}
	return n
}
