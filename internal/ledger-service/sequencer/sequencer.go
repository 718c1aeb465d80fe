// Package sequencer é a autoridade de ordenação do ledger: uma única goroutine
// aplica as operações, uma por vez e até o fim, na ordem em que chegaram.
package sequencer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
)

var (
	// ErrHalted é retornado depois que uma operação violou uma invariante do ledger
	ErrHalted = errors.New("sequencer halted")
	// ErrStopped é retornado quando o loop Run já terminou
	ErrStopped = errors.New("sequencer stopped")
)

// Op é uma operação do ledger. O contexto recebido não é cancelado pelo chamador.
type Op func(ctx context.Context) error

type request struct {
	name string
	op   Op
	done chan error
}

// Sequencer serializa as operações submetidas por HTTP e pelo consumer Kafka
type Sequencer struct {
	log     *zap.Logger
	reqs    chan request
	stopped chan struct{}
	halted  bool // só acessado pela goroutine de Run

	OnApplied func(name string, took time.Duration, err error) // métricas
	OnHalt    func(err error)
}

func New(log *zap.Logger) *Sequencer {
	return &Sequencer{
		log:     log,
		reqs:    make(chan request),
		stopped: make(chan struct{}),
	}
}

// Run aplica as operações até o contexto ser cancelado
func (s *Sequencer) Run(ctx context.Context) error {
	defer close(s.stopped)
	opCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-s.reqs:
			r.done <- s.apply(opCtx, r)
		}
	}
}

func (s *Sequencer) apply(ctx context.Context, r request) error {
	if s.halted {
		return ErrHalted
	}

	start := time.Now()
	err := r.op(ctx)
	took := time.Since(start)

	if errors.Is(err, ledger.ErrInvariantViolation) {
		s.halted = true
		s.log.Error("ledger invariant violated, halting sequencer", zap.String("op", r.name), zap.Error(err))
		if s.OnHalt != nil {
			s.OnHalt(err)
		}
	}
	if s.OnApplied != nil {
		s.OnApplied(r.name, took, err)
	}
	return err
}

// Submit entrega a operação e espera o resultado. Se ctx terminar depois da
// entrega, o chamador para de esperar mas a operação ainda roda até o fim.
func (s *Sequencer) Submit(ctx context.Context, name string, op Op) error {
	done := make(chan error, 1)
	select {
	case s.reqs <- request{name: name, op: op, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
