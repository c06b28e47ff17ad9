package study

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Checkpoint is the persisted progress of one study.
type Checkpoint struct {
	StudyID     string
	Cursor      uint64
	Total       uint64
	Fingerprint string
	Completed   bool
	UpdatedAt   time.Time
}

// Checkpointer persists study cursors between loadouts.
type Checkpointer interface {
	// LoadCursor returns the stored checkpoint; ok is false when none exists.
	LoadCursor(ctx context.Context, studyID string) (cp Checkpoint, ok bool, err error)
	SaveCursor(ctx context.Context, cp Checkpoint) error
	ClearCursor(ctx context.Context, studyID string) error
}

// Fingerprint hashes everything that defines a study's enumeration, so a
// cursor saved under a different configuration is never reused.
func Fingerprint(s *Study) string {
	h, _ := blake2b.New256(nil)

	writeString := func(v string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(v)))
		h.Write(n[:])
		h.Write([]byte(v))
	}
	writeInt := func(v int64) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(v))
		h.Write(n[:])
	}

	writeString(s.cfg.SubjectHero)
	writeInt(int64(len(s.preset)))
	for _, p := range s.preset {
		writeString(p)
	}
	writeInt(int64(len(s.skills)))
	for _, sk := range s.skills {
		writeString(sk)
	}
	writeInt(int64(s.k))
	writeInt(int64(len(s.dungeons)))
	for _, d := range s.dungeons {
		writeString(d.ID)
	}
	writeInt(int64(len(s.cfg.Difficulties)))
	for _, d := range s.cfg.Difficulties {
		writeString(string(d))
	}
	writeString(s.cfg.Miniboss.String())
	writeInt(int64(s.cfg.Simulations))
	writeInt(int64(s.cfg.EscalationThreshold * 1000))

	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCheckpoints keeps checkpoints in process memory.
type MemoryCheckpoints struct {
	mu    sync.Mutex
	saved map[string]Checkpoint
}

// NewMemoryCheckpoints creates an empty in-memory store.
func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{saved: make(map[string]Checkpoint)}
}

func (m *MemoryCheckpoints) LoadCursor(_ context.Context, studyID string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.saved[studyID]
	return cp, ok, nil
}

func (m *MemoryCheckpoints) SaveCursor(_ context.Context, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	m.saved[cp.StudyID] = cp
	return nil
}

func (m *MemoryCheckpoints) ClearCursor(_ context.Context, studyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, studyID)
	return nil
}
