package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/types"
)

func testParams() types.GenerationParameters {
	return types.GenerationParameters{Model: "gpt-4o-mini", MaxTokens: 2048, Temperature: 0.1}
}

func TestFingerprint_Stable(t *testing.T) {
	msgs := []types.Message{{Role: "user", Content: "what is a monad"}}
	a := Fingerprint(msgs, testParams())
	b := Fingerprint(msgs, testParams())
	if a != b {
		t.Error("identical inputs should fingerprint identically")
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex fingerprint, got %d", len(a))
	}
}

func TestFingerprint_WhitespaceNormalized(t *testing.T) {
	a := Fingerprint([]types.Message{{Role: "user", Content: "what  is\n a monad"}}, testParams())
	b := Fingerprint([]types.Message{{Role: "user", Content: " what is a monad "}}, testParams())
	if a != b {
		t.Error("whitespace-equivalent prompts should fingerprint identically")
	}
}

func TestFingerprint_SensitiveToInputs(t *testing.T) {
	msgs := []types.Message{{Role: "user", Content: "what is a monad"}}
	base := Fingerprint(msgs, testParams())

	otherPrompt := Fingerprint([]types.Message{{Role: "user", Content: "what is a functor"}}, testParams())
	if base == otherPrompt {
		t.Error("different prompts should fingerprint differently")
	}

	p := testParams()
	p.Temperature = 0.3
	otherTemp := Fingerprint(msgs, p)
	if base == otherTemp {
		t.Error("different temperature should fingerprint differently")
	}

	p = testParams()
	p.Model = "gpt-4o"
	otherModel := Fingerprint(msgs, p)
	if base == otherModel {
		t.Error("different model should fingerprint differently")
	}

	p = testParams()
	p.MaxTokens = 100
	otherMax := Fingerprint(msgs, p)
	if base == otherMax {
		t.Error("different max_tokens should fingerprint differently")
	}

	otherRole := Fingerprint([]types.Message{{Role: "system", Content: "what is a monad"}}, testParams())
	if base == otherRole {
		t.Error("different role should fingerprint differently")
	}
}

func newEntry(fp, completion string) *Entry {
	return &Entry{
		Fingerprint: fp,
		Completion:  completion,
		Model:       "gpt-4o-mini",
		Usage:       types.Usage{PromptTokens: 5, CompletionTokens: 9, TotalTokens: 14},
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	entry := newEntry("fp-1", "the answer")
	s.Put(ctx, entry)

	got, ok := s.Get(ctx, "fp-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Completion != "the answer" {
		t.Errorf("expected completion 'the answer', got %q", got.Completion)
	}
	if got.Usage != entry.Usage {
		t.Errorf("usage should round-trip exactly, got %+v", got.Usage)
	}
}

func TestMemoryStore_Miss(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	if _, ok := s.Get(context.Background(), "absent"); ok {
		t.Error("expected miss for absent fingerprint")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	s.Put(ctx, newEntry("fp-ttl", "stale soon"))
	if _, ok := s.Get(ctx, "fp-ttl"); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := s.Get(ctx, "fp-ttl"); ok {
		t.Error("expected miss after TTL expiry")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be removed, len=%d", s.Len())
	}
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	s := NewMemoryStore(2, time.Minute)
	ctx := context.Background()

	s.Put(ctx, newEntry("fp-a", "a"))
	s.Put(ctx, newEntry("fp-b", "b"))

	// Touch fp-a so fp-b becomes least recently used.
	if _, ok := s.Get(ctx, "fp-a"); !ok {
		t.Fatal("expected hit for fp-a")
	}

	s.Put(ctx, newEntry("fp-c", "c"))

	if _, ok := s.Get(ctx, "fp-b"); ok {
		t.Error("fp-b should have been evicted as least recently used")
	}
	if _, ok := s.Get(ctx, "fp-a"); !ok {
		t.Error("fp-a should survive eviction")
	}
	if _, ok := s.Get(ctx, "fp-c"); !ok {
		t.Error("fp-c should be present")
	}
}

func TestMemoryStore_CapacityEnforcedOnEveryPut(t *testing.T) {
	s := NewMemoryStore(3, time.Minute)
	ctx := context.Background()

	for _, fp := range []string{"f1", "f2", "f3", "f4", "f5"} {
		s.Put(ctx, newEntry(fp, fp))
		if s.Len() > 3 {
			t.Fatalf("capacity exceeded: len=%d", s.Len())
		}
	}
}

func TestMemoryStore_OverwriteSameFingerprint(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	s.Put(ctx, newEntry("fp-x", "first"))
	s.Put(ctx, newEntry("fp-x", "second"))

	got, ok := s.Get(ctx, "fp-x")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Completion != "second" {
		t.Errorf("put is last-write-wins, got %q", got.Completion)
	}
	if s.Len() != 1 {
		t.Errorf("overwrite should not grow the store, len=%d", s.Len())
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(64, time.Minute)
	ctx := context.Background()

	// Writers overwrite one shared fingerprint while readers hit it, so
	// Get-vs-Put on the same list element runs under the race detector.
	const fp = "fp-shared"
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Put(ctx, newEntry(fp, fmt.Sprintf("w%d-%d", n, j)))
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if got, ok := s.Get(ctx, fp); ok && got.Completion == "" {
					t.Error("hit returned an empty completion")
					return
				}
			}
		}()
	}
	wg.Wait()

	got, ok := s.Get(ctx, fp)
	if !ok || got.Completion == "" {
		t.Fatal("expected the last written entry to survive")
	}
}

func TestRedisStore_NilClientDegrades(t *testing.T) {
	s := NewRedisStore(nil, time.Minute)
	ctx := context.Background()

	s.Put(ctx, newEntry("fp", "x")) // must not panic
	if _, ok := s.Get(ctx, "fp"); ok {
		t.Error("nil redis client should always miss")
	}
}
