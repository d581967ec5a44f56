package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/adapter"
	"iran-payment/internal/domain/ports/repository"
	"iran-payment/internal/infra/adapters/gateway"
	"iran-payment/internal/infra/metrics"
)

// Locker serializes concurrent Confirm calls on one transaction code ahead
// of the storage compare-and-set. Satisfied by the redis locker; nil-able.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Orchestrator is the payment facade: it binds a gateway adapter to a
// session, drives the adapter's lifecycle hooks in order, and owns the
// transaction record's identity.
type Orchestrator struct {
	registry    *gateway.Registry
	repo        repository.TransactionRepository
	locker      Locker
	lockTTL     time.Duration
	fallbackURL string // global callback fallback from config
	log         *zerolog.Logger
}

func NewOrchestrator(
	registry *gateway.Registry,
	repo repository.TransactionRepository,
	locker Locker,
	lockTTL time.Duration,
	fallbackCallbackURL string,
	logger *zerolog.Logger,
) *Orchestrator {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Orchestrator{
		registry:    registry,
		repo:        repo,
		locker:      locker,
		lockTTL:     lockTTL,
		fallbackURL: fallbackCallbackURL,
		log:         logger,
	}
}

// Create binds a fresh session to the named gateway. No transaction exists
// yet.
func (o *Orchestrator) Create(gatewayName string) (*Session, error) {
	gw, err := o.registry.Resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	return o.CreateWith(gw), nil
}

// CreateWith binds a fresh session to a caller-supplied adapter instance.
func (o *Orchestrator) CreateWith(gw adapter.Gateway) *Session {
	return &Session{
		orc:      o,
		gw:       gw,
		currency: model.CurrencyIRR,
		params:   adapter.Params{},
	}
}

// FindTransaction loads a previously created record by its public code and
// binds a session to the adapter named on it. Required before Confirm.
func (o *Orchestrator) FindTransaction(ctx context.Context, code string) (*Session, error) {
	tx, err := o.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	gw, err := o.registry.Resolve(tx.GatewayName)
	if err != nil {
		return nil, err
	}
	return &Session{orc: o, gw: gw, tx: tx, currency: tx.Currency, params: adapter.Params{}}, nil
}

// Session is one payment attempt in flight. Setters are fluent and record
// their first validation failure; Ready/Confirm surface it before doing any
// work.
type Session struct {
	orc *Orchestrator
	gw  adapter.Gateway

	amount      int64
	currency    model.Currency
	callbackURL string
	payable     *model.PayableRef
	description string
	params      adapter.Params

	tx       *model.Transaction
	redirect adapter.Redirect

	err error
}

func (s *Session) fail(err error) *Session {
	if s.err == nil {
		s.err = err
	}
	return s
}

func (s *Session) SetAmount(amount int64, currency model.Currency) *Session {
	if amount <= 0 {
		return s.fail(fmt.Errorf("%w: amount must be positive, got %d", domain.ErrInvalidData, amount))
	}
	if !currency.Valid() {
		return s.fail(fmt.Errorf("%w: unknown currency %q", domain.ErrInvalidData, currency))
	}
	s.amount = amount
	s.currency = currency
	return s
}

func (s *Session) SetCallbackURL(raw string) *Session {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s.fail(fmt.Errorf("%w: malformed callback url %q", domain.ErrInvalidData, raw))
	}
	s.callbackURL = raw
	return s
}

func (s *Session) SetPayable(payableType, payableID string) *Session {
	if payableType == "" || payableID == "" {
		return s.fail(fmt.Errorf("%w: payable type and id are required", domain.ErrInvalidData))
	}
	s.payable = &model.PayableRef{Type: payableType, ID: payableID}
	return s
}

func (s *Session) SetDescription(d string) *Session {
	s.description = d
	return s
}

// SetParam passes an adapter-defined override through to Initialize.
func (s *Session) SetParam(key, value string) *Session {
	s.params[key] = value
	return s
}

// Transaction returns the session's record, nil before Ready.
func (s *Session) Transaction() *model.Transaction { return s.tx }

// Redirect returns the bank redirect; valid only after a successful Ready.
func (s *Session) Redirect() (adapter.Redirect, error) {
	if s.redirect.URL == "" {
		return adapter.Redirect{}, domain.ErrNotPurchased
	}
	return s.redirect, nil
}

// PurchaseURI is the redirect URL shorthand.
func (s *Session) PurchaseURI() (string, error) {
	r, err := s.Redirect()
	return r.URL, err
}

// Ready drives initialize -> pre-purchase -> purchase -> post-purchase and
// creates the transaction record exactly once, at post-purchase. A purchase
// failure leaves no record behind. Re-invocation after success is rejected.
func (s *Session) Ready(ctx context.Context) (*Session, error) {
	if s.err != nil {
		return s, s.err
	}
	if s.tx != nil {
		return s, domain.ErrAlreadyPurchased
	}
	if s.amount <= 0 {
		return s, fmt.Errorf("%w: amount is not set", domain.ErrInvalidData)
	}

	callback := s.callbackURL
	if callback == "" {
		callback = s.orc.fallbackURL
	}
	if callback == "" {
		return s, fmt.Errorf("%w: callback url is not set", domain.ErrInvalidData)
	}

	start := time.Now()
	tx := &model.Transaction{
		ID:          ulid.Make().String(),
		Code:        uuid.NewString(),
		Amount:      s.amount,
		Currency:    s.currency,
		GatewayName: s.gw.Name(),
		Payable:     s.payable,
		Description: s.description,
		CreatedAt:   start,
		UpdatedAt:   start,
	}

	params := adapter.Params{}
	for k, v := range s.params {
		params[k] = v
	}
	prepared, err := prepareCallbackURL(callback, tx.Code)
	if err != nil {
		return s, err
	}
	params["callback_url"] = prepared

	err = func() error {
		if err := s.gw.Initialize(params); err != nil {
			return err
		}
		if err := s.gw.PrePurchase(tx); err != nil {
			return err
		}
		if err := s.gw.Purchase(ctx, tx); err != nil {
			return err
		}
		return s.gw.PostPurchase(tx)
	}()
	metrics.ObservePurchase(s.gw.Name(), err == nil, time.Since(start))
	if err != nil {
		s.orc.log.Warn().Err(err).Str("gateway", s.gw.Name()).Msg("purchase failed")
		return s, err
	}

	tx.Status = model.TransactionStatusPending
	if err := s.orc.repo.Create(ctx, tx); err != nil {
		return s, err
	}
	s.tx = tx

	redirect, err := s.gw.PurchaseRedirect()
	if err != nil {
		return s, err
	}
	s.redirect = redirect

	s.orc.log.Info().
		Str("gateway", s.gw.Name()).
		Str("code", tx.Code).
		Int64("amount", tx.Amount).
		Msg("transaction pending, redirecting to gateway")
	return s, nil
}

// Confirm drives initialize -> pre-verify -> verify -> post-verify on a
// loaded transaction and finalizes its status through the storage
// compare-and-set. On any verify-stage failure the record is moved to a
// terminal failure state (best effort) before the original error is
// re-raised.
func (s *Session) Confirm(ctx context.Context, cb adapter.CallbackRequest) (*Session, error) {
	if s.err != nil {
		return s, s.err
	}
	if s.tx == nil {
		return s, domain.ErrTransactionNotFound
	}
	if s.tx.Status.Terminal() {
		return s, domain.ErrTransactionAlreadyFinalized
	}

	if s.orc.locker != nil {
		token, err := s.orc.locker.TryLock(ctx, confirmLockKey(s.tx.Code), s.orc.lockTTL)
		if err != nil {
			return s, domain.ErrLockNotAcquired
		}
		defer func() { _ = s.orc.locker.Unlock(ctx, confirmLockKey(s.tx.Code), token) }()
	}

	start := time.Now()
	err := func() error {
		if err := s.gw.Initialize(s.params); err != nil {
			return err
		}
		if err := s.gw.PreVerify(s.tx, cb); err != nil {
			return err
		}
		if err := s.gw.Verify(ctx, s.tx); err != nil {
			return err
		}
		return s.gw.PostVerify(s.tx)
	}()
	metrics.ObserveVerify(s.gw.Name(), err == nil, verifyFailReason(err), time.Since(start))

	if err != nil {
		s.finalize(ctx, failureStatus(err))
		return s, err
	}

	if terr := s.tx.Transition(model.TransactionStatusSucceed); terr != nil {
		return s, terr
	}
	if uerr := s.orc.repo.UpdateStatus(ctx, s.tx, model.TransactionStatusPending); uerr != nil {
		if errors.Is(uerr, domain.ErrTransactionAlreadyFinalized) {
			// lost the race to a concurrent confirm
			return s, domain.ErrTransactionAlreadyFinalized
		}
		return s, uerr
	}

	s.orc.log.Info().
		Str("gateway", s.gw.Name()).
		Str("code", s.tx.Code).
		Str("tracking_code", s.tx.TrackingCode).
		Msg("transaction succeeded")
	return s, nil
}

// finalize persists a terminal failure status, best effort: a persistence
// failure is reported on its own and never masks the verify error.
func (s *Session) finalize(ctx context.Context, to model.TransactionStatus) {
	if terr := s.tx.Transition(to); terr != nil {
		return
	}
	if uerr := s.orc.repo.UpdateStatus(ctx, s.tx, model.TransactionStatusPending); uerr != nil {
		s.orc.log.Error().Err(uerr).
			Str("code", s.tx.Code).
			Str("status", string(to)).
			Msg("could not persist terminal status")
	}
}

// failureStatus picks the terminal state for a verify-stage error: infra
// failures (no terminal bank response obtained) park the record in `error`,
// bank-reported failures in `failed`.
func failureStatus(err error) model.TransactionStatus {
	if errors.Is(err, domain.ErrCommunication) || errors.Is(err, domain.ErrUnexpectedResponse) {
		return model.TransactionStatusError
	}
	return model.TransactionStatusFailed
}

func verifyFailReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrCommunication):
		return "communication"
	case errors.Is(err, domain.ErrUnexpectedResponse):
		return "unexpected_response"
	default:
		var gerr *domain.GatewayError
		if errors.As(err, &gerr) {
			return string(gerr.Kind)
		}
		return "other"
	}
}

// prepareCallbackURL appends the transaction's public code as the `tc` query
// parameter so the callback layer can re-locate the record after the bank
// redirect.
func prepareCallbackURL(raw, code string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed callback url %q", domain.ErrInvalidData, raw)
	}
	q := u.Query()
	q.Set("tc", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func confirmLockKey(code string) string { return "iranpay:confirm:" + code }
