package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
)

// In-memory fakes shared by the use case tests. They apply writes
// immediately; transactional visibility is asserted through the fakeTx
// commit/rollback flags where it matters.

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeTxManager struct {
	last *fakeTx
	err  error
}

func (m *fakeTxManager) Begin(context.Context) (Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.last = &fakeTx{}
	return m.last, nil
}

func streamKey(pointID, currencyID string) string {
	return pointID + ":" + currencyID
}

type fakeMovementRepo struct {
	movements []*domain.Movement
	seq       int64
	createErr error
}

func (r *fakeMovementRepo) Create(_ context.Context, _ Transaction, m *domain.Movement) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	m.Sequence = r.seq
	clone := *m
	r.movements = append(r.movements, &clone)
	return nil
}

func (r *fakeMovementRepo) GetByID(_ context.Context, id string) (*domain.Movement, error) {
	for _, m := range r.movements {
		if m.ID == id {
			clone := *m
			return &clone, nil
		}
	}
	return nil, domain.ErrMovementNotFound
}

func (r *fakeMovementRepo) GetByReference(_ context.Context, _ Transaction, pointID, currencyID string, movementType domain.MovementType, refType domain.ReferenceType, refID string) (*domain.Movement, error) {
	for _, m := range r.movements {
		if m.PointID == pointID && m.CurrencyID == currencyID && m.Type == movementType &&
			m.ReferenceType == refType && m.ReferenceID == refID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, domain.ErrMovementNotFound
}

func (r *fakeMovementRepo) stream(pointID, currencyID string) []*domain.Movement {
	var out []*domain.Movement
	for _, m := range r.movements {
		if m.PointID == pointID && m.CurrencyID == currencyID {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (r *fakeMovementRepo) ListByPointCurrency(_ context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
	all := r.stream(pointID, currencyID)
	// newest first
	sort.Slice(all, func(i, j int) bool { return all[i].Sequence > all[j].Sequence })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeMovementRepo) ListForReplay(_ context.Context, pointID, currencyID string, from, to time.Time) ([]*domain.Movement, error) {
	var out []*domain.Movement
	for _, m := range r.stream(pointID, currencyID) {
		if m.CreatedAt.Before(from) || m.CreatedAt.After(to) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeMovementRepo) ListAllOrdered(_ context.Context, pointID, currencyID string) ([]*domain.Movement, error) {
	return r.stream(pointID, currencyID), nil
}

func (r *fakeMovementRepo) ListAllOrderedTx(_ context.Context, _ Transaction, pointID, currencyID string) ([]*domain.Movement, error) {
	return r.stream(pointID, currencyID), nil
}

func (r *fakeMovementRepo) LastBefore(_ context.Context, pointID, currencyID string, at time.Time) (*domain.Movement, error) {
	all := r.stream(pointID, currencyID)
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].CreatedAt.After(at) {
			return all[i], nil
		}
	}
	return nil, domain.ErrMovementNotFound
}

func (r *fakeMovementRepo) UpdateChain(_ context.Context, _ Transaction, id string, previousBalance, newBalance decimal.Decimal) error {
	for _, m := range r.movements {
		if m.ID == id {
			m.PreviousBalance = previousBalance
			m.NewBalance = newBalance
			return nil
		}
	}
	return domain.ErrMovementNotFound
}

func (r *fakeMovementRepo) FindDuplicateGroups(_ context.Context, _ Transaction, pointID, currencyID string) ([][]*domain.Movement, error) {
	byKey := make(map[string][]*domain.Movement)
	var order []string
	for _, m := range r.stream(pointID, currencyID) {
		if m.ReferenceType == "" || m.ReferenceID == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s", m.Type, m.ReferenceType, m.ReferenceID)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], m)
	}

	var groups [][]*domain.Movement
	for _, key := range order {
		if len(byKey[key]) > 1 {
			groups = append(groups, byKey[key])
		}
	}
	return groups, nil
}

func (r *fakeMovementRepo) Delete(_ context.Context, _ Transaction, id string) error {
	for i, m := range r.movements {
		if m.ID == id {
			r.movements = append(r.movements[:i], r.movements[i+1:]...)
			return nil
		}
	}
	return domain.ErrMovementNotFound
}

func (r *fakeMovementRepo) ListStreams(context.Context) ([]PointCurrency, error) {
	seen := make(map[string]bool)
	var streams []PointCurrency
	for _, m := range r.movements {
		key := streamKey(m.PointID, m.CurrencyID)
		if !seen[key] {
			seen[key] = true
			streams = append(streams, PointCurrency{PointID: m.PointID, CurrencyID: m.CurrencyID})
		}
	}
	return streams, nil
}

// inject appends a movement verbatim, bypassing the recorder the way
// legacy scripts used to. Test setup only.
func (r *fakeMovementRepo) inject(m domain.Movement) {
	r.seq++
	m.Sequence = r.seq
	r.movements = append(r.movements, &m)
}

type fakeBalanceRepo struct {
	balances  map[string]*domain.Balance
	updateErr error
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: make(map[string]*domain.Balance)}
}

func (r *fakeBalanceRepo) Get(_ context.Context, pointID, currencyID string) (*domain.Balance, error) {
	b, ok := r.balances[streamKey(pointID, currencyID)]
	if !ok {
		return nil, domain.ErrBalanceNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *fakeBalanceRepo) GetForUpdate(ctx context.Context, _ Transaction, pointID, currencyID string) (*domain.Balance, error) {
	return r.Get(ctx, pointID, currencyID)
}

func (r *fakeBalanceRepo) CreateTx(_ context.Context, _ Transaction, balance *domain.Balance) error {
	clone := *balance
	r.balances[streamKey(balance.PointID, balance.CurrencyID)] = &clone
	return nil
}

func (r *fakeBalanceRepo) Update(_ context.Context, _ Transaction, balance *domain.Balance, updatedAt time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	clone := *balance
	clone.UpdatedAt = updatedAt
	r.balances[streamKey(balance.PointID, balance.CurrencyID)] = &clone
	return nil
}

func (r *fakeBalanceRepo) List(_ context.Context, limit, offset int) ([]*domain.Balance, error) {
	var out []*domain.Balance
	for _, b := range r.balances {
		clone := *b
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return streamKey(out[i].PointID, out[i].CurrencyID) < streamKey(out[j].PointID, out[j].CurrencyID)
	})
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// set seeds or corrupts a balance directly, emulating the external
// writes reconciliation exists to catch. Test setup only.
func (r *fakeBalanceRepo) set(b domain.Balance) {
	r.balances[streamKey(b.PointID, b.CurrencyID)] = &b
}

type fakeAnchorRepo struct {
	anchors []*domain.InitialBalance
}

func (r *fakeAnchorRepo) GetActive(_ context.Context, pointID, currencyID string) (*domain.InitialBalance, error) {
	for i := len(r.anchors) - 1; i >= 0; i-- {
		a := r.anchors[i]
		if a.PointID == pointID && a.CurrencyID == currencyID && a.Active {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrAnchorNotFound
}

func (r *fakeAnchorRepo) GetActiveAt(_ context.Context, pointID, currencyID string, at time.Time) (*domain.InitialBalance, error) {
	for i := len(r.anchors) - 1; i >= 0; i-- {
		a := r.anchors[i]
		if a.PointID == pointID && a.CurrencyID == currencyID && a.Active && !a.AssignedAt.After(at) {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrAnchorNotFound
}

func (r *fakeAnchorRepo) DeactivateTx(_ context.Context, _ Transaction, pointID, currencyID string) error {
	for _, a := range r.anchors {
		if a.PointID == pointID && a.CurrencyID == currencyID {
			a.Active = false
		}
	}
	return nil
}

func (r *fakeAnchorRepo) CreateTx(_ context.Context, _ Transaction, anchor *domain.InitialBalance) error {
	clone := *anchor
	r.anchors = append(r.anchors, &clone)
	return nil
}

type fakeTransferRepo struct {
	transfers map[string]*domain.Transfer
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{transfers: make(map[string]*domain.Transfer)}
}

func (r *fakeTransferRepo) Create(_ context.Context, t *domain.Transfer) error {
	clone := *t
	r.transfers[t.ID] = &clone
	return nil
}

func (r *fakeTransferRepo) GetByID(_ context.Context, id string) (*domain.Transfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTransferRepo) GetByIDForUpdate(ctx context.Context, _ Transaction, id string) (*domain.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTransferRepo) UpdateStatus(_ context.Context, _ Transaction, id string, status domain.TransferStatus, updatedAt time.Time) error {
	t, ok := r.transfers[id]
	if !ok {
		return domain.ErrTransferNotFound
	}
	t.Status = status
	t.UpdatedAt = updatedAt
	return nil
}

func (r *fakeTransferRepo) ListByPoint(_ context.Context, pointID string, limit, offset int) ([]*domain.Transfer, error) {
	var out []*domain.Transfer
	for _, t := range r.transfers {
		if t.OriginPointID == pointID || t.DestPointID == pointID {
			clone := *t
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeAuditRepo struct {
	logs []*domain.AuditLog
}

func (r *fakeAuditRepo) CreateTx(_ context.Context, _ Transaction, log *domain.AuditLog) error {
	clone := *log
	r.logs = append(r.logs, &clone)
	return nil
}

func (r *fakeAuditRepo) ListByResource(_ context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for _, l := range r.logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeOutboxRepo struct {
	events    []*domain.OutboxEvent
	createErr error
}

func (r *fakeOutboxRepo) Create(_ context.Context, _ Transaction, event *domain.OutboxEvent) error {
	if r.createErr != nil {
		return r.createErr
	}
	clone := *event
	r.events = append(r.events, &clone)
	return nil
}

func (r *fakeOutboxRepo) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	for _, e := range r.events {
		if !e.Published {
			clone := *e
			out = append(out, &clone)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	for _, e := range r.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return nil
}

func (r *fakeOutboxRepo) DeletePublished(_ context.Context, before time.Time) error {
	kept := r.events[:0]
	for _, e := range r.events {
		if !e.Published || e.PublishedAt == nil || e.PublishedAt.After(before) {
			kept = append(kept, e)
		}
	}
	r.events = kept
	return nil
}

type seqIDGen struct {
	prefix string
	n      int
}

func (g *seqIDGen) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%03d", g.prefix, g.n)
}

type fakeCache struct {
	data    map[string][]byte
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.data[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
	return nil
}

// ledgerFixture wires a full use case graph over the fakes.
type ledgerFixture struct {
	txManager    *fakeTxManager
	movementRepo *fakeMovementRepo
	balanceRepo  *fakeBalanceRepo
	anchorRepo   *fakeAnchorRepo
	transferRepo *fakeTransferRepo
	auditRepo    *fakeAuditRepo
	outboxRepo   *fakeOutboxRepo
	cache        *fakeCache

	recorder *RecorderUseCase
	balances *BalanceUseCase
	anchors  *AnchorUseCase
	recon    *ReconciliationUseCase
	chain    *ChainUseCase
	reversal *ReversalUseCase
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		txManager:    &fakeTxManager{},
		movementRepo: &fakeMovementRepo{},
		balanceRepo:  newFakeBalanceRepo(),
		anchorRepo:   &fakeAnchorRepo{},
		transferRepo: newFakeTransferRepo(),
		auditRepo:    &fakeAuditRepo{},
		outboxRepo:   &fakeOutboxRepo{},
		cache:        newFakeCache(),
	}

	idGen := &seqIDGen{prefix: "id"}

	f.recorder = NewRecorderUseCase(f.txManager, f.balanceRepo, f.movementRepo, f.outboxRepo, idGen, f.cache)
	f.balances = NewBalanceUseCase(f.balanceRepo, f.movementRepo, f.anchorRepo, f.cache)
	f.anchors = NewAnchorUseCase(f.txManager, f.anchorRepo, f.auditRepo, f.outboxRepo, f.recorder, idGen)
	f.recon = NewReconciliationUseCase(f.balanceRepo, f.movementRepo, f.anchorRepo, f.auditRepo, f.outboxRepo, f.txManager, f.recorder, f.anchors, idGen)
	f.chain = NewChainUseCase(f.txManager, f.balanceRepo, f.movementRepo, f.anchorRepo, f.auditRepo, f.recorder, idGen)
	f.reversal = NewReversalUseCase(f.txManager, f.transferRepo, f.movementRepo, f.outboxRepo, f.recorder, idGen)

	return f
}
