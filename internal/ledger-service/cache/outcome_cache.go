package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// KV é o subconjunto do cliente Redis usado pelo cache
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// OutcomeCache decora um ledger.EventStore com leitura e escrita através do Redis.
// O store continua sendo a fonte da verdade: falhas do Redis só são logadas,
// exceto a invalidação em SetOutcome, que aborta a escrita.
//
// Um hit também decide que o evento existe, então as chaves levam o Namespace
// da instância do store: um store novo (memória reiniciada, banco recriado)
// nunca enxerga chaves do anterior.
type OutcomeCache struct {
	Store     ledger.EventStore
	KV        KV
	Namespace string
	TTL       time.Duration
	Log       *zap.Logger

	OnHit  func() // métricas
	OnMiss func()
}

// NewOutcomeCache cria o cache; namespace identifica a instância do store
func NewOutcomeCache(store ledger.EventStore, kv KV, namespace string, ttl time.Duration, log *zap.Logger) (*OutcomeCache, error) {
	if namespace == "" {
		return nil, errors.New("outcome cache requires a store namespace")
	}
	return &OutcomeCache{Store: store, KV: kv, Namespace: namespace, TTL: ttl, Log: log}, nil
}

// key gera a chave Redis do outcome de um evento
func (c *OutcomeCache) key(name ledger.EventName) string {
	return "ledger:outcome:" + c.Namespace + ":" + string(name)
}

// GetOutcome consulta o Redis e, em caso de miss, o store (preenchendo o cache)
func (c *OutcomeCache) GetOutcome(ctx context.Context, name ledger.EventName) (ledger.Outcome, bool, error) {
	raw, err := c.KV.Get(ctx, c.key(name)).Result()
	if err == nil {
		if n, perr := strconv.ParseUint(raw, 10, 8); perr == nil {
			if c.OnHit != nil {
				c.OnHit()
			}
			return ledger.Outcome(n), true, nil
		}
		c.Log.Warn("invalid cached outcome", zap.String("event", string(name)), zap.String("value", raw))
	} else if err != redis.Nil {
		c.Log.Warn("redis get failed", zap.Error(err))
	}
	if c.OnMiss != nil {
		c.OnMiss()
	}

	o, found, err := c.Store.GetOutcome(ctx, name)
	if err != nil || !found {
		return o, found, err
	}
	c.set(ctx, name, o)
	return o, true, nil
}

// InsertEvent grava no store e popula o cache com outcome 0
func (c *OutcomeCache) InsertEvent(ctx context.Context, name ledger.EventName) error {
	if err := c.Store.InsertEvent(ctx, name); err != nil {
		return err
	}
	c.set(ctx, name, ledger.Unresolved)
	return nil
}

// SetOutcome invalida a chave antes de gravar no store, assim um Set que falhe
// depois nunca deixa um outcome antigo no cache
func (c *OutcomeCache) SetOutcome(ctx context.Context, name ledger.EventName, outcome ledger.Outcome) error {
	if err := c.KV.Del(ctx, c.key(name)).Err(); err != nil {
		return fmt.Errorf("invalidate cached outcome: %w", err)
	}
	if err := c.Store.SetOutcome(ctx, name, outcome); err != nil {
		return err
	}
	c.set(ctx, name, outcome)
	return nil
}

func (c *OutcomeCache) set(ctx context.Context, name ledger.EventName, o ledger.Outcome) {
	if err := c.KV.Set(ctx, c.key(name), strconv.Itoa(int(o)), c.TTL).Err(); err != nil {
		c.Log.Warn("redis set failed", zap.String("event", string(name)), zap.Error(err))
	}
}
