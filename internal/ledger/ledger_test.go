package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger/memstore"
)

const (
	alice  ledger.AccountID = "alice"
	bob    ledger.AccountID = "bob"
	escrow ledger.AccountID = "treasury"
)

type recordingSink struct {
	got []ledger.Notification
}

func (s *recordingSink) Deposit(_ context.Context, _ ledger.EventName, n ledger.Notification) {
	s.got = append(s.got, n)
}

func (s *recordingSink) last(t *testing.T) ledger.Notification {
	t.Helper()
	if len(s.got) == 0 {
		t.Fatalf("expected a notification, got none")
	}
	return s.got[len(s.got)-1]
}

type fixture struct {
	ledger   *ledger.Ledger
	events   *memstore.Events
	bets     *memstore.Bets
	currency *memstore.Currency
	sink     *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events:   memstore.NewEvents(),
		bets:     memstore.NewBets(),
		currency: memstore.NewCurrency(1),
		sink:     &recordingSink{},
	}
	f.currency.Deposit(alice, 1000)
	f.currency.Deposit(bob, 1000)
	f.currency.Deposit(escrow, 1000)

	l, err := ledger.New(context.Background(), ledger.Config{
		MaxEventNameLength: 16,
		EscrowAccountName:  string(escrow),
	}, ledger.Deps{
		Events:   f.events,
		Bets:     f.bets,
		Currency: f.currency,
		Sink:     f.sink,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	f.ledger = l
	return f
}

func (f *fixture) register(t *testing.T, name ledger.EventName) {
	t.Helper()
	if err := f.ledger.RegisterEvent(context.Background(), alice, name); err != nil {
		t.Fatalf("register %q: %v", name, err)
	}
}

func (f *fixture) resolve(t *testing.T, name ledger.EventName, outcome ledger.Outcome) {
	t.Helper()
	if err := f.ledger.RecordOutcome(context.Background(), alice, name, outcome); err != nil {
		t.Fatalf("record outcome %q: %v", name, err)
	}
}

func (f *fixture) bet(t *testing.T, who ledger.AccountID, name ledger.EventName, team ledger.Team, amount ledger.Balance) {
	t.Helper()
	if err := f.ledger.PlaceBet(context.Background(), who, name, team, amount); err != nil {
		t.Fatalf("place bet: %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := ledger.New(context.Background(), ledger.Config{MaxEventNameLength: 8, EscrowAccountName: "treasury"}, ledger.Deps{})
	if err == nil {
		t.Fatalf("expected error for missing collaborators")
	}
}

func TestRegisterEventTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "match1")
	if err := f.ledger.RegisterEvent(ctx, bob, "match1"); !errors.Is(err, ledger.ErrEventAlreadyExists) {
		t.Fatalf("expected ErrEventAlreadyExists, got %v", err)
	}

	outcome, found, err := f.ledger.Query(ctx, "match1")
	if err != nil || !found {
		t.Fatalf("expected event to exist, got found=%v err=%v", found, err)
	}
	if outcome != ledger.Unresolved {
		t.Fatalf("expected outcome 0, got %d", outcome)
	}
	if len(f.sink.got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.sink.got))
	}
	want := ledger.EventInitialized{Who: alice, Event: "match1"}
	if f.sink.got[0] != want {
		t.Fatalf("expected %+v, got %+v", want, f.sink.got[0])
	}
}

func TestNameLengthBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := ledger.EventName(strings.Repeat("x", 17))
	exact := ledger.EventName(strings.Repeat("x", 16))

	if err := f.ledger.RegisterEvent(ctx, alice, long); !errors.Is(err, ledger.ErrTooLongName) {
		t.Fatalf("expected ErrTooLongName, got %v", err)
	}
	if err := f.ledger.RegisterEvent(ctx, alice, exact); err != nil {
		t.Fatalf("expected name at the bound to register, got %v", err)
	}

	ops := map[string]func() error{
		"record": func() error { return f.ledger.RecordOutcome(ctx, alice, long, 1) },
		"bet":    func() error { return f.ledger.PlaceBet(ctx, alice, long, 1, 10) },
		"claim": func() error {
			_, err := f.ledger.ClaimReward(ctx, alice, long)
			return err
		},
		"remove": func() error { return f.ledger.RemoveBet(ctx, alice, long) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ledger.ErrTooLongName) {
			t.Fatalf("%s: expected ErrTooLongName, got %v", name, err)
		}
	}
	if f.events.Len() != 1 {
		t.Fatalf("expected 1 stored event, got %d", f.events.Len())
	}
}

func TestRecordOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.ledger.RecordOutcome(ctx, alice, "nope", 1); !errors.Is(err, ledger.ErrEventDoesNotExist) {
		t.Fatalf("expected ErrEventDoesNotExist, got %v", err)
	}

	f.register(t, "match1")
	f.resolve(t, "match1", 2)
	want := ledger.OutcomeRecorded{Event: "match1", Outcome: 2}
	if n := f.sink.last(t); n != want {
		t.Fatalf("expected %+v, got %+v", want, n)
	}

	// re-resolução é permitida e sobrescreve o resultado
	f.resolve(t, "match1", 5)
	outcome, _, _ := f.ledger.Query(ctx, "match1")
	if outcome != 5 {
		t.Fatalf("expected outcome 5 after overwrite, got %d", outcome)
	}
}

func TestPlaceBetPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		event   ledger.EventName
		team    ledger.Team
		wantErr error
	}{
		{
			name:    "event does not exist",
			event:   "ghost",
			team:    1,
			wantErr: ledger.ErrEventDoesNotExist,
		},
		{
			name:    "missing event checked before team zero",
			event:   "ghost",
			team:    0,
			wantErr: ledger.ErrEventDoesNotExist,
		},
		{
			name: "event already ended",
			setup: func(t *testing.T, f *fixture) {
				f.register(t, "match1")
				f.resolve(t, "match1", 1)
			},
			event:   "match1",
			team:    0,
			wantErr: ledger.ErrEventAlreadyEnded,
		},
		{
			name: "team zero",
			setup: func(t *testing.T, f *fixture) {
				f.register(t, "match1")
			},
			event:   "match1",
			team:    0,
			wantErr: ledger.ErrCanNotBetOnZero,
		},
		{
			name: "team zero checked before duplicate bet",
			setup: func(t *testing.T, f *fixture) {
				f.register(t, "match1")
				f.bet(t, alice, "match1", 2, 50)
			},
			event:   "match1",
			team:    0,
			wantErr: ledger.ErrCanNotBetOnZero,
		},
		{
			name: "already bet with valid team",
			setup: func(t *testing.T, f *fixture) {
				f.register(t, "match1")
				f.bet(t, alice, "match1", 2, 50)
			},
			event:   "match1",
			team:    1,
			wantErr: ledger.ErrAlreadyBet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			aliceBefore := f.currency.Balance(alice)
			escrowBefore := f.currency.Balance(escrow)
			notifications := len(f.sink.got)

			err := f.ledger.PlaceBet(context.Background(), alice, tt.event, tt.team, 100)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if f.currency.Balance(alice) != aliceBefore || f.currency.Balance(escrow) != escrowBefore {
				t.Fatalf("expected no fund movement on rejected bet")
			}
			if len(f.sink.got) != notifications {
				t.Fatalf("expected no notification on rejected bet")
			}
		})
	}
}

func TestPlaceBetMovesStakeToEscrow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "match1")
	f.bet(t, alice, "match1", 3, 100)

	if got := f.currency.Balance(alice); got != 900 {
		t.Fatalf("expected alice balance 900, got %d", got)
	}
	if got := f.currency.Balance(escrow); got != 1100 {
		t.Fatalf("expected escrow balance 1100, got %d", got)
	}
	bet, found, err := f.ledger.GetBet(context.Background(), alice, "match1")
	if err != nil || !found {
		t.Fatalf("expected stored bet, got found=%v err=%v", found, err)
	}
	if bet != (ledger.BetRecord{Team: 3, Amount: 100}) {
		t.Fatalf("unexpected bet %+v", bet)
	}
	want := ledger.BetPlaced{Who: alice, Amount: 100, Escrow: escrow}
	if n := f.sink.last(t); n != want {
		t.Fatalf("expected %+v, got %+v", want, n)
	}
}

func TestPlaceBetCanDrainAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t, "match1")
	f.bet(t, alice, "match1", 1, 1000)

	if f.currency.Exists(alice) {
		t.Fatalf("expected drained account to be reaped")
	}
}

func TestPlaceBetTransferFailureLeavesNoBet(t *testing.T) {
	f := newFixture(t)
	f.register(t, "match1")

	err := f.ledger.PlaceBet(context.Background(), alice, "match1", 1, 5000)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if f.bets.Len() != 0 {
		t.Fatalf("expected no stored bet, got %d", f.bets.Len())
	}
	if f.currency.Balance(alice) != 1000 {
		t.Fatalf("expected balance untouched")
	}
}

func TestClaimRewardPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "match1")

	if _, err := f.ledger.ClaimReward(ctx, alice, "match1"); !errors.Is(err, ledger.ErrDidNotBet) {
		t.Fatalf("expected ErrDidNotBet, got %v", err)
	}

	f.bet(t, alice, "match1", 1, 100)
	if _, err := f.ledger.ClaimReward(ctx, alice, "match1"); !errors.Is(err, ledger.ErrEventHasNotEndedYet) {
		t.Fatalf("expected ErrEventHasNotEndedYet, got %v", err)
	}
	if f.bets.Len() != 1 {
		t.Fatalf("expected bet kept after failed claim")
	}

	// aposta órfã: o evento não existe mais no store
	if err := f.bets.PutBet(ctx, bob, "orphan", ledger.BetRecord{Team: 1, Amount: 10}); err != nil {
		t.Fatalf("put bet: %v", err)
	}
	if _, err := f.ledger.ClaimReward(ctx, bob, "orphan"); !errors.Is(err, ledger.ErrEventDoesNotExist) {
		t.Fatalf("expected ErrEventDoesNotExist, got %v", err)
	}
}

func TestClaimRewardWinnerGetsDouble(t *testing.T) {
	f := newFixture(t)
	f.register(t, "match1")
	f.bet(t, alice, "match1", 2, 150)
	f.bet(t, bob, "match1", 1, 40)
	f.resolve(t, "match1", 2)

	bobBefore := f.currency.Balance(bob)
	if _, err := f.ledger.ClaimReward(context.Background(), alice, "match1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := f.currency.Balance(alice); got != 1000-150+300 {
		t.Fatalf("expected alice balance %d, got %d", 1000-150+300, got)
	}
	if got := f.currency.Balance(escrow); got != 1000+150+40-300 {
		t.Fatalf("expected escrow balance %d, got %d", 1000+150+40-300, got)
	}
	if f.currency.Balance(bob) != bobBefore {
		t.Fatalf("expected loser balance untouched")
	}
	want := ledger.RewardClaimed{Who: alice, Amount: 300}
	if n := f.sink.last(t); n != want {
		t.Fatalf("expected %+v, got %+v", want, n)
	}
}

func TestClaimRewardLoserGetsNothing(t *testing.T) {
	f := newFixture(t)
	f.register(t, "match1")
	f.bet(t, bob, "match1", 1, 40)
	f.resolve(t, "match1", 2)

	bobBefore := f.currency.Balance(bob)
	escrowBefore := f.currency.Balance(escrow)
	if _, err := f.ledger.ClaimReward(context.Background(), bob, "match1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if f.currency.Balance(bob) != bobBefore || f.currency.Balance(escrow) != escrowBefore {
		t.Fatalf("expected no fund movement for a lost bet")
	}
	if _, found, _ := f.ledger.GetBet(context.Background(), bob, "match1"); found {
		t.Fatalf("expected lost bet to be removed")
	}
	if n := f.sink.last(t); n != (ledger.BetLost{Who: bob}) {
		t.Fatalf("expected BetLost, got %+v", n)
	}
}

func TestClaimRewardTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "match1")
	f.bet(t, alice, "match1", 1, 100)
	f.resolve(t, "match1", 1)

	if _, err := f.ledger.ClaimReward(ctx, alice, "match1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := f.ledger.ClaimReward(ctx, alice, "match1"); !errors.Is(err, ledger.ErrDidNotBet) {
		t.Fatalf("expected ErrDidNotBet on second claim, got %v", err)
	}
}

func TestClaimRewardInsolventEscrowKeepsBet(t *testing.T) {
	f := &fixture{
		events:   memstore.NewEvents(),
		bets:     memstore.NewBets(),
		currency: memstore.NewCurrency(1),
		sink:     &recordingSink{},
	}
	f.currency.Deposit(alice, 1000)
	l, err := ledger.New(context.Background(), ledger.Config{MaxEventNameLength: 16, EscrowAccountName: "treasury"}, ledger.Deps{
		Events: f.events, Bets: f.bets, Currency: f.currency, Sink: f.sink,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	f.ledger = l

	f.register(t, "match1")
	f.bet(t, alice, "match1", 1, 100)
	f.resolve(t, "match1", 1)

	_, err = f.ledger.ClaimReward(context.Background(), alice, "match1")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if f.bets.Len() != 1 {
		t.Fatalf("expected bet kept when payout fails")
	}
	if f.currency.Balance(escrow) != 100 {
		t.Fatalf("expected escrow untouched, got %d", f.currency.Balance(escrow))
	}
}

func TestClaimRewardPayoutOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "match1")
	huge := ledger.BetRecord{Team: 1, Amount: math.MaxUint64/2 + 1}
	if err := f.bets.PutBet(ctx, alice, "match1", huge); err != nil {
		t.Fatalf("put bet: %v", err)
	}
	f.resolve(t, "match1", 1)
	notifications := len(f.sink.got)

	_, err := f.ledger.ClaimReward(ctx, alice, "match1")
	if !errors.Is(err, ledger.ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
	if f.currency.Balance(alice) != 1000 || f.currency.Balance(escrow) != 1000 {
		t.Fatalf("expected no transfer, got alice=%d escrow=%d", f.currency.Balance(alice), f.currency.Balance(escrow))
	}
	if bet, found, _ := f.bets.GetBet(ctx, alice, "match1"); !found || bet != huge {
		t.Fatalf("expected bet kept, got %+v found=%v", bet, found)
	}
	if len(f.sink.got) != notifications {
		t.Fatalf("expected no notification on overflow")
	}
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "match1")
	if o, _, _ := f.ledger.Query(ctx, "match1"); o != 0 {
		t.Fatalf("expected outcome 0, got %d", o)
	}

	f.bet(t, alice, "match1", 3, 100)
	if f.currency.Balance(escrow) != 1100 || f.currency.Balance(alice) != 900 {
		t.Fatalf("expected escrow +100 and alice -100")
	}

	f.resolve(t, "match1", 3)
	if _, err := f.ledger.ClaimReward(ctx, alice, "match1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if f.currency.Balance(escrow) != 900 || f.currency.Balance(alice) != 1100 {
		t.Fatalf("expected escrow -200 and alice +200, got escrow=%d alice=%d",
			f.currency.Balance(escrow), f.currency.Balance(alice))
	}
	want := ledger.RewardClaimed{Who: alice, Amount: 200}
	if n := f.sink.last(t); n != want {
		t.Fatalf("expected %+v, got %+v", want, n)
	}
}

func TestRemoveBetDoesNotRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "match1")

	if err := f.ledger.RemoveBet(ctx, alice, "match1"); !errors.Is(err, ledger.ErrDidNotBet) {
		t.Fatalf("expected ErrDidNotBet, got %v", err)
	}

	f.bet(t, alice, "match1", 3, 100)
	if err := f.ledger.RemoveBet(ctx, alice, "match1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.currency.Balance(escrow) != 1100 {
		t.Fatalf("expected escrow to keep the stake, got %d", f.currency.Balance(escrow))
	}
	if f.currency.Balance(alice) != 900 {
		t.Fatalf("expected alice balance not restored, got %d", f.currency.Balance(alice))
	}
	if n := f.sink.last(t); n != (ledger.BetRemoved{Who: alice}) {
		t.Fatalf("expected BetRemoved, got %+v", n)
	}
	if f.bets.Len() != 0 {
		t.Fatalf("expected bet record removed")
	}
}

func TestBetsAreKeyedByAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t, "match1")
	f.bet(t, alice, "match1", 1, 100)

	if err := f.ledger.RemoveBet(context.Background(), bob, "match1"); !errors.Is(err, ledger.ErrDidNotBet) {
		t.Fatalf("expected ErrDidNotBet for another account, got %v", err)
	}
	f.bet(t, bob, "match1", 2, 100)
	if f.bets.Len() != 2 {
		t.Fatalf("expected 2 bets, got %d", f.bets.Len())
	}
}

type failingBets struct {
	*memstore.Bets
	putErr  error
	takeErr error
}

func (b *failingBets) PutBet(ctx context.Context, who ledger.AccountID, name ledger.EventName, bet ledger.BetRecord) error {
	if b.putErr != nil {
		return b.putErr
	}
	return b.Bets.PutBet(ctx, who, name, bet)
}

func (b *failingBets) TakeBet(ctx context.Context, who ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error) {
	if b.takeErr != nil {
		return ledger.BetRecord{}, false, b.takeErr
	}
	return b.Bets.TakeBet(ctx, who, name)
}

func TestStoreWriteAfterTransferIsInvariantViolation(t *testing.T) {
	ctx := context.Background()
	currency := memstore.NewCurrency(1)
	currency.Deposit(alice, 1000)
	currency.Deposit(escrow, 1000)
	bets := &failingBets{Bets: memstore.NewBets(), putErr: errors.New("disk full")}

	l, err := ledger.New(ctx, ledger.Config{MaxEventNameLength: 16, EscrowAccountName: "treasury"}, ledger.Deps{
		Events: memstore.NewEvents(), Bets: bets, Currency: currency,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := l.RegisterEvent(ctx, alice, "match1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	err = l.PlaceBet(ctx, alice, "match1", 1, 100)
	if !errors.Is(err, ledger.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if ledger.Code(err) != "InvariantViolation" {
		t.Fatalf("expected code InvariantViolation, got %q", ledger.Code(err))
	}

	bets.putErr = nil
	if err := l.PlaceBet(ctx, bob, "match1", 1, 0); err != nil {
		t.Fatalf("place zero bet: %v", err)
	}
	if err := l.RecordOutcome(ctx, alice, "match1", 1); err != nil {
		t.Fatalf("record: %v", err)
	}
	bets.takeErr = errors.New("disk full")
	if _, err := l.ClaimReward(ctx, bob, "match1"); !errors.Is(err, ledger.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation on payout, got %v", err)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ledger.ErrEventAlreadyExists, "EventAlreadyExists"},
		{ledger.ErrDidNotBet, "DidNotBet"},
		{ledger.ErrTooLongName, "TooLongName"},
		{ledger.ErrAlreadyClaimedReward, "AlreadyClaimedReward"},
		{fmt.Errorf("transfer stake: %w", ledger.ErrInsufficientFunds), "InsufficientFunds"},
		{errors.New("boom"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := ledger.Code(tt.err); got != tt.want {
			t.Fatalf("Code(%v): expected %q, got %q", tt.err, tt.want, got)
		}
	}
}
