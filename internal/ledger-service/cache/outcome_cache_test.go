package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger/memstore"
)

type fakeKV struct {
	m      map[string]string
	getErr error
	setErr error
	delErr error
}

func newFakeKV() *fakeKV { return &fakeKV{m: map[string]string{}} }

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	v, ok := f.m[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	f.m[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.delErr != nil {
		cmd.SetErr(f.delErr)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.m[k]; ok {
			delete(f.m, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func newCache(t *testing.T, store ledger.EventStore, kv KV, ns string) *OutcomeCache {
	t.Helper()
	c, err := NewOutcomeCache(store, kv, ns, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

func TestOutcomeCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEvents()
	_ = store.InsertEvent(ctx, "match1")
	_ = store.SetOutcome(ctx, "match1", 4)

	kv := newFakeKV()
	c := newCache(t, store, kv, "n1")
	hits, misses := 0, 0
	c.OnHit = func() { hits++ }
	c.OnMiss = func() { misses++ }

	for i := 0; i < 2; i++ {
		o, found, err := c.GetOutcome(ctx, "match1")
		if err != nil || !found || o != 4 {
			t.Fatalf("expected outcome 4, got %d found=%v err=%v", o, found, err)
		}
	}
	if misses != 1 || hits != 1 {
		t.Fatalf("expected 1 miss and 1 hit, got %d/%d", misses, hits)
	}
	if kv.m["ledger:outcome:n1:match1"] != "4" {
		t.Fatalf("expected cached value 4, got %q", kv.m["ledger:outcome:n1:match1"])
	}

	if _, found, err := c.GetOutcome(ctx, "ghost"); err != nil || found {
		t.Fatalf("expected missing event, got found=%v err=%v", found, err)
	}
	if _, ok := kv.m["ledger:outcome:n1:ghost"]; ok {
		t.Fatalf("missing events must not be cached")
	}
}

func TestOutcomeCacheWriteThrough(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	c := newCache(t, memstore.NewEvents(), kv, "n1")

	if err := c.InsertEvent(ctx, "match1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if kv.m["ledger:outcome:n1:match1"] != "0" {
		t.Fatalf("expected cached 0 after insert, got %q", kv.m["ledger:outcome:n1:match1"])
	}
	if err := c.SetOutcome(ctx, "match1", 9); err != nil {
		t.Fatalf("set outcome: %v", err)
	}
	if kv.m["ledger:outcome:n1:match1"] != "9" {
		t.Fatalf("expected cached 9, got %q", kv.m["ledger:outcome:n1:match1"])
	}
	if err := c.SetOutcome(ctx, "ghost", 1); !errors.Is(err, ledger.ErrEventDoesNotExist) {
		t.Fatalf("expected ErrEventDoesNotExist, got %v", err)
	}
}

func TestOutcomeCacheRedisFailures(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEvents()
	kv := newFakeKV()
	c := newCache(t, store, kv, "n1")
	_ = c.InsertEvent(ctx, "match1")

	// Set falhando depois da escrita: a chave já foi invalidada, a leitura cai no store
	kv.setErr = errors.New("redis down")
	if err := c.SetOutcome(ctx, "match1", 2); err != nil {
		t.Fatalf("set outcome: %v", err)
	}
	if _, ok := kv.m["ledger:outcome:n1:match1"]; ok {
		t.Fatalf("expected stale key to be invalidated")
	}
	kv.getErr = errors.New("redis down")
	if o, _, err := c.GetOutcome(ctx, "match1"); err != nil || o != 2 {
		t.Fatalf("expected store fallback with outcome 2, got %d err=%v", o, err)
	}

	// invalidação falhando aborta antes de tocar o store
	kv.delErr = errors.New("redis down")
	if err := c.SetOutcome(ctx, "match1", 3); err == nil {
		t.Fatalf("expected invalidation error")
	}
	if o, _, _ := store.GetOutcome(ctx, "match1"); o != 2 {
		t.Fatalf("expected store untouched with outcome 2, got %d", o)
	}
}

func TestOutcomeCacheRequiresNamespace(t *testing.T) {
	if _, err := NewOutcomeCache(memstore.NewEvents(), newFakeKV(), "", time.Minute, zap.NewNop()); err == nil {
		t.Fatalf("expected error for empty namespace")
	}
}

// Redis sobrevive ao store: um store novo não pode herdar eventos do anterior
func TestOutcomeCacheIgnoresKeysOfPreviousStore(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()

	first := newCache(t, memstore.NewEvents(), kv, "run-1")
	if err := first.InsertEvent(ctx, "match1"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	currency := memstore.NewCurrency(1)
	_, _ = currency.Deposit("alice", 1000)
	_, _ = currency.Deposit("treasury", 1000)
	bets := memstore.NewBets()
	l, err := ledger.New(ctx, ledger.Config{MaxEventNameLength: 16, EscrowAccountName: "treasury"}, ledger.Deps{
		Events:   newCache(t, memstore.NewEvents(), kv, "run-2"),
		Bets:     bets,
		Currency: currency,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	if err := l.PlaceBet(ctx, "alice", "match1", 1, 100); !errors.Is(err, ledger.ErrEventDoesNotExist) {
		t.Fatalf("expected ErrEventDoesNotExist, got %v", err)
	}
	if _, found, _ := bets.GetBet(ctx, "alice", "match1"); found {
		t.Fatalf("expected no bet stored")
	}
	if got := currency.Balance("alice"); got != 1000 {
		t.Fatalf("expected alice untouched, got %d", got)
	}
	if err := l.RegisterEvent(ctx, "alice", "match1"); err != nil {
		t.Fatalf("expected register on empty store to succeed, got %v", err)
	}
}
