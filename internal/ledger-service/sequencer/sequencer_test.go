package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
)

func start(t *testing.T) (*Sequencer, context.CancelFunc) {
	t.Helper()
	s := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(cancel)
	return s, cancel
}

func TestSubmitIsSerial(t *testing.T) {
	s, _ := start(t)

	var (
		active  int
		maxSeen int
		total   int
		mu      sync.Mutex // só para o teste observar; o sequenciador não precisa
	)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Submit(context.Background(), "op", func(context.Context) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				active--
				total++
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most 1 concurrent op, got %d", maxSeen)
	}
	if total != 50 {
		t.Fatalf("expected 50 ops, got %d", total)
	}
}

func TestSubmitReturnsOpError(t *testing.T) {
	s, _ := start(t)
	var applied []string
	s.OnApplied = func(name string, _ time.Duration, err error) {
		applied = append(applied, fmt.Sprintf("%s:%v", name, err))
	}

	err := s.Submit(context.Background(), "place_bet", func(context.Context) error { return ledger.ErrAlreadyBet })
	if !errors.Is(err, ledger.ErrAlreadyBet) {
		t.Fatalf("expected ErrAlreadyBet, got %v", err)
	}
	if len(applied) != 1 || applied[0] != "place_bet:"+ledger.ErrAlreadyBet.Error() {
		t.Fatalf("unexpected OnApplied calls %v", applied)
	}
}

func TestInvariantViolationHalts(t *testing.T) {
	s, _ := start(t)
	halts := 0
	s.OnHalt = func(error) { halts++ }

	err := s.Submit(context.Background(), "place_bet", func(context.Context) error {
		return fmt.Errorf("%w: put bet: disk full", ledger.ErrInvariantViolation)
	})
	if !errors.Is(err, ledger.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}

	ran := false
	err = s.Submit(context.Background(), "query", func(context.Context) error { ran = true; return nil })
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("expected ErrHalted, got %v", err)
	}
	if ran {
		t.Fatalf("expected op not to run after halt")
	}
	if halts != 1 {
		t.Fatalf("expected 1 halt, got %d", halts)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	s := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() { _ = s.Run(ctx); close(stopped) }()
	cancel()
	<-stopped

	err := s.Submit(context.Background(), "op", func(context.Context) error { return nil })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestCallerCancelDoesNotAbortOp(t *testing.T) {
	s, _ := start(t)
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- s.Submit(ctx, "slow", func(opCtx context.Context) error {
			close(started)
			<-release
			if opCtx.Err() != nil {
				t.Errorf("expected op context to stay alive, got %v", opCtx.Err())
			}
			close(finished)
			return nil
		})
	}()

	<-started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("expected op to run to completion")
	}
}
