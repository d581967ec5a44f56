package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memTransactionRepo is a small in-memory implementation used by unit tests.
// UpdateStatus honors the compare-and-set contract of the real repository.
type memTransactionRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Transaction // by code
	createErr error
	updateErr error
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{store: make(map[string]*model.Transaction)}
}

func copyTx(t *model.Transaction) *model.Transaction {
	cp := *t
	if t.GatewayData != nil {
		cp.GatewayData = make(map[string]string, len(t.GatewayData))
		for k, v := range t.GatewayData {
			cp.GatewayData[k] = v
		}
	}
	return &cp
}

func (m *memTransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[t.Code] = copyTx(t)
	return nil
}

func (m *memTransactionRepo) FindByCode(ctx context.Context, code string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[code]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTx(t), nil
}

func (m *memTransactionRepo) UpdateStatus(ctx context.Context, t *model.Transaction, from model.TransactionStatus) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.store[t.Code]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if stored.Status != from {
		return domain.ErrTransactionAlreadyFinalized
	}
	m.store[t.Code] = copyTx(t)
	return nil
}

// countingLocker records lock traffic; it never blocks.
type countingLocker struct {
	mu       sync.Mutex
	locked   int
	unlocked int
}

func (l *countingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked++
	return "token", nil
}

func (l *countingLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocked++
	return nil
}

// fakeGateway drives the contract without a bank. Each hook can be replaced
// per test; unset hooks behave like a healthy gateway.
type fakeGateway struct {
	name string

	initializeFn  func(params adapter.Params) error
	prePurchaseFn func(tx *model.Transaction) error
	purchaseFn    func(ctx context.Context, tx *model.Transaction) error
	preVerifyFn   func(tx *model.Transaction, cb adapter.CallbackRequest) error
	verifyFn      func(ctx context.Context, tx *model.Transaction) error

	params    adapter.Params
	token     string
	verifyRan int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{name: "fakepay"}
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) Initialize(params adapter.Params) error {
	g.params = params
	if g.initializeFn != nil {
		return g.initializeFn(params)
	}
	return nil
}

func (g *fakeGateway) PrePurchase(tx *model.Transaction) error {
	if g.prePurchaseFn != nil {
		return g.prePurchaseFn(tx)
	}
	return nil
}

func (g *fakeGateway) Purchase(ctx context.Context, tx *model.Transaction) error {
	if g.purchaseFn != nil {
		return g.purchaseFn(ctx, tx)
	}
	g.token = "fake-token"
	return nil
}

func (g *fakeGateway) PostPurchase(tx *model.Transaction) error {
	tx.MergeGatewayData(map[string]string{"token": g.token})
	return nil
}

func (g *fakeGateway) PurchaseRedirect() (adapter.Redirect, error) {
	if g.token == "" {
		return adapter.Redirect{}, domain.ErrNotPurchased
	}
	return adapter.Redirect{URL: "https://bank.example/pay/" + g.token, Method: "GET", Title: "Fake Bank"}, nil
}

func (g *fakeGateway) PreVerify(tx *model.Transaction, cb adapter.CallbackRequest) error {
	if g.preVerifyFn != nil {
		return g.preVerifyFn(tx, cb)
	}
	if cb["Token"] != tx.GatewayData["token"] {
		return &domain.GatewayError{Gateway: g.name, Code: -1, Kind: domain.KindInvalidRequest}
	}
	return nil
}

func (g *fakeGateway) Verify(ctx context.Context, tx *model.Transaction) error {
	g.verifyRan++
	if g.verifyFn != nil {
		return g.verifyFn(ctx, tx)
	}
	return nil
}

func (g *fakeGateway) PostVerify(tx *model.Transaction) error {
	tx.TrackingCode = "track-1"
	tx.ReferenceNumber = "ref-1"
	tx.MergeGatewayData(map[string]string{"tracking": "track-1"})
	return nil
}
