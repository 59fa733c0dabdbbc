package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/robalobadob/riddler/internal/errs"
	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
)

type countingOracle struct {
	calls int
	reply string
	err   error
}

func (o *countingOracle) Ask(context.Context, string, riddles.Question, []game.HistoryEntry) (string, error) {
	o.calls++
	return o.reply, o.err
}

func TestKeyDependsOnHistory(t *testing.T) {
	a := Key("q", puddle, nil)
	b := Key("q", puddle, []game.HistoryEntry{{Question: "x", Answer: "No"}})
	if a == b {
		t.Fatal("history did not change the key")
	}
	if a != Key("q", puddle, nil) {
		t.Fatal("key is not stable")
	}
	// Field boundaries matter.
	if Key("ab", puddle, []game.HistoryEntry{{Question: "c"}}) == Key("c", puddle, []game.HistoryEntry{{Question: "ab"}}) {
		t.Fatal("keys collide across fields")
	}
}

func TestCachedServesRepeatQuestions(t *testing.T) {
	next := &countingOracle{reply: "No"}
	o := NewCached(next, NewMemoryCache(), time.Minute)

	for i := 0; i < 3; i++ {
		got, err := o.Ask(context.Background(), "Was it murder?", puddle, nil)
		if err != nil || got != "No" {
			t.Fatalf("Ask = %q, %v", got, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("backend calls = %d, want 1", next.calls)
	}
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	next := &countingOracle{err: errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonTimeout, "slow", nil)}
	o := NewCached(next, NewMemoryCache(), time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := o.Ask(context.Background(), "q", puddle, nil); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("backend calls = %d, want 2", next.calls)
	}
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}

func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("down")
}

func TestCachedFallsThroughOnCacheErrors(t *testing.T) {
	next := &countingOracle{reply: "Yes"}
	got, err := NewCached(next, brokenCache{}, time.Minute).Ask(context.Background(), "q", puddle, nil)
	if err != nil || got != "Yes" {
		t.Fatalf("Ask = %q, %v", got, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryCache()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("entry survived its ttl")
	}
}

func TestMemoryCacheSweepsExpiredOnSet(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryCache()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 10_000; i++ {
		if err := m.Set(ctx, fmt.Sprintf("k%d", i), "v", time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatal(err)
	}
	now = now.Add(48 * time.Hour)
	if err := m.Set(ctx, "fresh", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	if got := len(m.items); got != 2 {
		t.Fatalf("items after sweep = %d, want 2", got)
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Fatal("entry without ttl was swept")
	}
}

func TestMemoryCacheCapsSize(t *testing.T) {
	m := NewMemoryCache()
	m.maxItems = 3
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := m.Set(ctx, fmt.Sprintf("k%d", i), "v", 0); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(m.items); got != 3 {
		t.Fatalf("items = %d, want 3", got)
	}
	if _, ok, _ := m.Get(ctx, "k9"); !ok {
		t.Fatal("latest entry was evicted")
	}
	// Overwriting an existing key never evicts.
	if err := m.Set(ctx, "k9", "w", 0); err != nil {
		t.Fatal(err)
	}
	if got := len(m.items); got != 3 {
		t.Fatalf("items after overwrite = %d, want 3", got)
	}
}

func TestKeyDependsOnRiddleContent(t *testing.T) {
	twin := puddle
	twin.HiddenAnswer = "something else"
	if Key("q", puddle, nil) == Key("q", twin, nil) {
		t.Fatal("riddles sharing a title share a key")
	}
	twin = puddle
	twin.ResponseCaution = "be strict"
	if Key("q", puddle, nil) == Key("q", twin, nil) {
		t.Fatal("caution did not change the key")
	}
	twin = puddle
	twin.Body = "another story"
	if Key("q", puddle, nil) == Key("q", twin, nil) {
		t.Fatal("body did not change the key")
	}
}
