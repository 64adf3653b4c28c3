package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// --- in-memory fakes ---

type memPositionStore struct {
	positions map[string]domain.Position
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{positions: make(map[string]domain.Position)}
}

func (s *memPositionStore) Create(_ context.Context, pos domain.Position) error {
	if _, ok := s.positions[pos.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.positions[pos.ID] = pos
	return nil
}

func (s *memPositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	pos, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (s *memPositionStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Position, error) {
	out := make([]domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	return out, nil
}

func (s *memPositionStore) UpdateSnapshot(_ context.Context, id string, state domain.PositionState) error {
	pos, ok := s.positions[id]
	if !ok {
		return domain.ErrNotFound
	}
	pos.Snapshot = &state
	s.positions[id] = pos
	return nil
}

func (s *memPositionStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.Position, error) {
	var out []domain.Position
	for _, pos := range s.positions {
		if pos.Snapshot != nil && pos.Snapshot.Closed() && pos.Snapshot.ClosedAt.Before(before) {
			out = append(out, pos)
		}
	}
	return out, nil
}

type memTransactionStore struct {
	txs []domain.Transaction
}

func (s *memTransactionStore) Append(_ context.Context, tx domain.Transaction) error {
	s.txs = append(s.txs, tx)
	return nil
}

func (s *memTransactionStore) Delete(_ context.Context, id string) (domain.Transaction, error) {
	for i, tx := range s.txs {
		if tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return tx, nil
		}
	}
	return domain.Transaction{}, domain.ErrNotFound
}

func (s *memTransactionStore) GetByID(_ context.Context, id string) (domain.Transaction, error) {
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, domain.ErrNotFound
}

func (s *memTransactionStore) ListByPosition(_ context.Context, positionID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range s.txs {
		if tx.PositionID == positionID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type memStateCache struct {
	states map[string]domain.PositionState
	sets   int
	hits   int
}

func newMemStateCache() *memStateCache {
	return &memStateCache{states: make(map[string]domain.PositionState)}
}

func (c *memStateCache) Set(_ context.Context, id string, state domain.PositionState) error {
	c.sets++
	c.states[id] = state
	return nil
}

func (c *memStateCache) Get(_ context.Context, id string) (domain.PositionState, error) {
	state, ok := c.states[id]
	if !ok {
		return domain.PositionState{}, domain.ErrNotFound
	}
	c.hits++
	return state, nil
}

func (c *memStateCache) Invalidate(_ context.Context, id string) error {
	delete(c.states, id)
	return nil
}

type memBus struct {
	published [][]byte
	channels  []string
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channels = append(b.channels, channel)
	b.published = append(b.published, payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memAudit struct {
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memProfileStore struct {
	profiles map[string]domain.RiskProfile
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: make(map[string]domain.RiskProfile)}
}

func (s *memProfileStore) Get(_ context.Context, name string) (domain.RiskProfile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return domain.RiskProfile{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memProfileStore) Upsert(_ context.Context, profile domain.RiskProfile) error {
	s.profiles[profile.Name] = profile
	return nil
}

func (s *memProfileStore) List(context.Context) ([]domain.RiskProfile, error) {
	out := make([]domain.RiskProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

// --- test fixture ---

type fixture struct {
	journal  *JournalService
	profiles *memProfileStore
	cache    *memStateCache
	bus      *memBus
	audit    *memAudit
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := newMemStateCache()
	bus := &memBus{}
	audit := &memAudit{}
	journal := NewJournalService(
		newMemPositionStore(),
		&memTransactionStore{},
		cache,
		bus,
		audit,
		logger,
	)
	return &fixture{
		journal:  journal,
		profiles: newMemProfileStore(),
		cache:    cache,
		bus:      bus,
		audit:    audit,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad decimal %q: %v", s, err))
	}
	return d
}

func openEquity(t *testing.T, f *fixture, price, qty string) domain.Position {
	t.Helper()
	pos, err := f.journal.Open(context.Background(), OpenParams{
		Symbol:     "AAPL",
		Instrument: domain.Instrument{Kind: domain.InstrumentEquity, Symbol: "AAPL"},
		Direction:  domain.DirectionLong,
		Profile:    "day_trader",
		Price:      dec(price),
		Quantity:   dec(qty),
		ExecutedAt: time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return pos
}

// --- journal tests ---

func TestOpenCreatesPositionWithSnapshot(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")

	if pos.ID == "" {
		t.Fatal("expected a generated position ID")
	}
	if pos.Snapshot == nil {
		t.Fatal("expected snapshot on new position")
	}
	if !pos.Snapshot.OpenQty.Equal(dec("10")) {
		t.Errorf("open qty = %s, want 10", pos.Snapshot.OpenQty)
	}
	if pos.Snapshot.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s, want open", pos.Snapshot.Status)
	}
	if got := f.audit.events; len(got) != 1 || got[0] != "position_opened" {
		t.Errorf("audit events = %v, want [position_opened]", got)
	}
	if len(f.bus.published) != 1 || f.bus.channels[0] != EventChannel {
		t.Errorf("expected one event on channel %q, got %v", EventChannel, f.bus.channels)
	}
}

func TestOpenRejectsInvalidDirection(t *testing.T) {
	f := newFixture()
	_, err := f.journal.Open(context.Background(), OpenParams{
		Symbol:     "AAPL",
		Instrument: domain.Instrument{Kind: domain.InstrumentEquity, Symbol: "AAPL"},
		Direction:  domain.Direction("buy"),
		Price:      dec("100"),
		Quantity:   dec("10"),
	})
	if err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestAppendTrimUpdatesSnapshot(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")

	_, state, err := f.journal.Append(context.Background(), pos.ID, domain.TxTrim, dec("120"), dec("4"), time.Time{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !state.OpenQty.Equal(dec("6")) {
		t.Errorf("open qty = %s, want 6", state.OpenQty)
	}
	if state.RealizedPL == nil || !state.RealizedPL.Equal(dec("80")) {
		t.Errorf("realized pl = %v, want 80", state.RealizedPL)
	}

	stored, err := f.journal.Get(context.Background(), pos.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Snapshot == nil || !stored.Snapshot.OpenQty.Equal(dec("6")) {
		t.Errorf("persisted snapshot open qty = %v, want 6", stored.Snapshot)
	}
}

func TestAppendRejectsSecondOpen(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")

	_, _, err := f.journal.Append(context.Background(), pos.ID, domain.TxOpen, dec("101"), dec("5"), time.Time{})
	if !errors.Is(err, domain.ErrInvalidSequence) {
		t.Fatalf("err = %v, want ErrInvalidSequence", err)
	}
}

func TestAppendOverCloseLeavesNothingBehind(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")

	_, _, err := f.journal.Append(context.Background(), pos.ID, domain.TxClose, dec("120"), dec("11"), time.Time{})
	if !errors.Is(err, domain.ErrOverClose) {
		t.Fatalf("err = %v, want ErrOverClose", err)
	}

	history, err := f.journal.Transactions(context.Background(), pos.ID)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want the opening transaction only", len(history))
	}
}

func TestAppendClosePublishesClosedEvent(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")

	_, state, err := f.journal.Append(context.Background(), pos.ID, domain.TxClose, dec("120"), dec("10"), time.Time{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !state.Closed() {
		t.Fatal("expected closed state")
	}
	last := f.audit.events[len(f.audit.events)-1]
	if last != "position_closed" {
		t.Errorf("last audit event = %q, want position_closed", last)
	}
}

func TestRemoveRecomputesState(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")
	tx, _, err := f.journal.Append(context.Background(), pos.ID, domain.TxTrim, dec("120"), dec("4"), time.Time{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	state, err := f.journal.Remove(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !state.OpenQty.Equal(dec("10")) {
		t.Errorf("open qty after removal = %s, want 10", state.OpenQty)
	}
	if state.RealizedPL != nil {
		t.Errorf("realized pl after removal = %s, want nil", state.RealizedPL)
	}
}

func TestRemoveRejectsOrphaningHistory(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")
	_, _, err := f.journal.Append(context.Background(), pos.ID, domain.TxTrim, dec("120"), dec("4"), time.Time{})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := f.journal.Transactions(context.Background(), pos.ID)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	var openID string
	for _, tx := range history {
		if tx.Kind == domain.TxOpen {
			openID = tx.ID
		}
	}

	if _, err := f.journal.Remove(context.Background(), openID); !errors.Is(err, domain.ErrInvalidSequence) {
		t.Fatalf("err = %v, want ErrInvalidSequence", err)
	}
	history, _ = f.journal.Transactions(context.Background(), pos.ID)
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2 after rejected removal", len(history))
	}
}

func TestStateReadsThroughCache(t *testing.T) {
	f := newFixture()
	pos := openEquity(t, f, "100", "10")

	// Open already populated the cache; the first read should hit it.
	if _, err := f.journal.State(context.Background(), pos.ID); err != nil {
		t.Fatalf("State: %v", err)
	}
	if f.cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", f.cache.hits)
	}

	// After invalidation the read falls back to a fresh reduction and
	// repopulates the cache.
	if err := f.cache.Invalidate(context.Background(), pos.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	setsBefore := f.cache.sets
	state, err := f.journal.State(context.Background(), pos.ID)
	if err != nil {
		t.Fatalf("State after invalidation: %v", err)
	}
	if !state.OpenQty.Equal(dec("10")) {
		t.Errorf("open qty = %s, want 10", state.OpenQty)
	}
	if f.cache.sets != setsBefore+1 {
		t.Errorf("cache sets = %d, want %d", f.cache.sets, setsBefore+1)
	}
}

// --- report tests ---

func TestPositionReportUsesNamedProfile(t *testing.T) {
	f := newFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reports := NewReportService(f.journal, f.profiles, logger)

	if err := f.profiles.Upsert(context.Background(), domain.RiskProfile{
		Name:             "day_trader",
		PortfolioSize:    dec("100000"),
		RiskTolerancePct: dec("2"),
		RiskLevels:       domain.DefaultRiskLevels,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	pos := openEquity(t, f, "50", "10")
	if _, _, err := f.journal.Append(context.Background(), pos.ID, domain.TxClose, dec("55"), dec("10"), time.Time{}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	report, err := reports.PositionReport(context.Background(), pos.ID, "")
	if err != nil {
		t.Fatalf("PositionReport: %v", err)
	}
	if !report.RiskUnit.Equal(dec("2000")) {
		t.Errorf("risk unit = %s, want 2000", report.RiskUnit)
	}
	if report.UnitsPerRisk != 40 {
		t.Errorf("units per risk = %d, want 40", report.UnitsPerRisk)
	}
	// Per-unit gain of 5 across 10 exited shares sized at 40 units per risk.
	if report.RealizedValue == nil || !report.RealizedValue.Equal(dec("2000")) {
		t.Errorf("realized value = %v, want 2000", report.RealizedValue)
	}
	if report.State.RealizedPL == nil || !report.State.RealizedPL.Equal(dec("50")) {
		t.Errorf("raw realized pl = %v, want 50", report.State.RealizedPL)
	}
}

func TestPositionReportUnknownProfile(t *testing.T) {
	f := newFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reports := NewReportService(f.journal, f.profiles, logger)

	pos := openEquity(t, f, "50", "10")
	_, err := reports.PositionReport(context.Background(), pos.ID, "no_such_profile")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSummarizeAggregatesRealized(t *testing.T) {
	f := newFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reports := NewReportService(f.journal, f.profiles, logger)

	winner := openEquity(t, f, "100", "10")
	if _, _, err := f.journal.Append(context.Background(), winner.ID, domain.TxClose, dec("120"), dec("10"), time.Time{}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	loser := openEquity(t, f, "100", "10")
	if _, _, err := f.journal.Append(context.Background(), loser.ID, domain.TxClose, dec("95"), dec("10"), time.Time{}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	openEquity(t, f, "100", "5")

	sum, err := reports.Summarize(context.Background(), domain.ListOpts{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.OpenPositions != 1 || sum.ClosedPositions != 2 {
		t.Errorf("open/closed = %d/%d, want 1/2", sum.OpenPositions, sum.ClosedPositions)
	}
	if !sum.TotalRealizedPL.Equal(dec("150")) {
		t.Errorf("total realized = %s, want 150", sum.TotalRealizedPL)
	}
	if sum.BestRealizedPL == nil || !sum.BestRealizedPL.Equal(dec("200")) {
		t.Errorf("best realized = %v, want 200", sum.BestRealizedPL)
	}
	if sum.WorstRealizedPL == nil || !sum.WorstRealizedPL.Equal(dec("-50")) {
		t.Errorf("worst realized = %v, want -50", sum.WorstRealizedPL)
	}
}

// --- profile tests ---

func TestProfileSeedIsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemProfileStore()
	svc := NewProfileService(store, logger)

	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	custom, err := svc.Upsert(context.Background(), domain.RiskProfile{
		Name:             "day_trader",
		PortfolioSize:    dec("250000"),
		RiskTolerancePct: dec("1.5"),
		RiskLevels:       4,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	got, err := svc.Get(context.Background(), "day_trader")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.PortfolioSize.Equal(custom.PortfolioSize) {
		t.Errorf("seed overwrote customized profile: portfolio = %s", got.PortfolioSize)
	}

	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != len(domain.DefaultProfiles()) {
		t.Errorf("profile count = %d, want %d", len(all), len(domain.DefaultProfiles()))
	}
}

func TestProfileUpsertValidates(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewProfileService(newMemProfileStore(), logger)

	tests := []struct {
		name    string
		profile domain.RiskProfile
	}{
		{"empty name", domain.RiskProfile{PortfolioSize: dec("100000"), RiskTolerancePct: dec("2")}},
		{"zero portfolio", domain.RiskProfile{Name: "x", RiskTolerancePct: dec("2")}},
		{"tolerance above 100", domain.RiskProfile{Name: "x", PortfolioSize: dec("100000"), RiskTolerancePct: dec("150")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Upsert(context.Background(), tt.profile); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestProfileUpsertDefaultsRiskLevels(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewProfileService(newMemProfileStore(), logger)

	got, err := svc.Upsert(context.Background(), domain.RiskProfile{
		Name:             "custom",
		PortfolioSize:    dec("100000"),
		RiskTolerancePct: dec("2"),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got.RiskLevels != domain.DefaultRiskLevels {
		t.Errorf("risk levels = %d, want %d", got.RiskLevels, domain.DefaultRiskLevels)
	}
}
