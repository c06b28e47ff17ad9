package checkpoint

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lawnchairsociety/questsim/internal/study"
)

func TestCursorKey(t *testing.T) {
	if got := cursorKey("kat-crit"); got != "questsim:study:kat-crit:checkpoint" {
		t.Errorf("cursorKey() = %q", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	cp := study.Checkpoint{StudyID: "s", Cursor: 12, Total: 45, Fingerprint: "ff00", Completed: true, UpdatedAt: at}

	fields := make(map[string]string)
	for k, v := range encode(cp) {
		fields[k] = v.(string)
	}
	got, err := decode("s", fields)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != cp {
		t.Errorf("decode(encode(cp)) = %+v, want %+v", got, cp)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing cursor", map[string]string{"total": "1"}},
		{"bad total", map[string]string{"cursor": "1", "total": "x"}},
		{"bad completed", map[string]string{"cursor": "1", "total": "2", "completed": "maybe"}},
		{"bad updated_at", map[string]string{"cursor": "1", "total": "2", "updated_at": "soon"}},
	}
	for _, tt := range tests {
		if _, err := decode("s", tt.fields); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", 0); err == nil {
		t.Error("expected parse error")
	}
}

// setup connects when QUESTSIM_TEST_REDIS_URL is set.
func setup(t *testing.T, ttl time.Duration) *RedisStore {
	t.Helper()
	url := os.Getenv("QUESTSIM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis test: QUESTSIM_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStore(url, ttl)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisRoundTrip(t *testing.T) {
	s := setup(t, 0)
	ctx := context.Background()
	id := "test-" + t.Name()
	defer s.ClearCursor(ctx, id)

	if _, ok, err := s.LoadCursor(ctx, id); ok || err != nil {
		t.Fatalf("fresh LoadCursor: ok=%v err=%v", ok, err)
	}

	if err := s.SaveCursor(ctx, study.Checkpoint{StudyID: id, Cursor: 3, Total: 10, Fingerprint: "abc"}); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	cp, ok, err := s.LoadCursor(ctx, id)
	if err != nil || !ok {
		t.Fatalf("LoadCursor: ok=%v err=%v", ok, err)
	}
	if cp.Cursor != 3 || cp.Total != 10 || cp.Fingerprint != "abc" || cp.Completed {
		t.Errorf("LoadCursor() = %+v", cp)
	}

	if err := s.ClearCursor(ctx, id); err != nil {
		t.Fatalf("ClearCursor: %v", err)
	}
	if _, ok, _ := s.LoadCursor(ctx, id); ok {
		t.Error("checkpoint present after ClearCursor")
	}
}

func TestRedisTTL(t *testing.T) {
	s := setup(t, time.Minute)
	ctx := context.Background()
	id := "test-" + t.Name()
	defer s.ClearCursor(ctx, id)

	if err := s.SaveCursor(ctx, study.Checkpoint{StudyID: id, Cursor: 1, Total: 2}); err != nil {
		t.Fatal(err)
	}
	ttl, err := s.rdb.TTL(ctx, cursorKey(id)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, %v", ttl, err)
	}
}

var _ study.Checkpointer = (*RedisStore)(nil)
