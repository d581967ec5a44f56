package zarinpal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"iran-payment/internal/config"
	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/adapter"
	"iran-payment/internal/infra/adapters/gateway/zarinpal"
	"iran-payment/internal/infra/transport"
)

func newGateway(t *testing.T, baseURL string) *zarinpal.Gateway {
	t.Helper()
	g := zarinpal.New(config.ZarinpalConfig{
		MerchantID:  "zp-merchant",
		CallbackURL: "https://merchant.example/cb?tc=code-1",
		Description: "order",
	}, transport.NewClient(0))
	params := adapter.Params{"pay_base_url": "https://www.zarinpal.com/pg/StartPay/"}
	if baseURL != "" {
		params["base_url"] = baseURL
	}
	if err := g.Initialize(params); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return g
}

func pendingTx(amount int64) *model.Transaction {
	return &model.Transaction{
		ID:       "tx-1",
		Code:     "code-1",
		Amount:   amount,
		Currency: model.CurrencyIRR,
		Status:   model.TransactionStatusPending,
	}
}

func TestPurchase(t *testing.T) {
	t.Run("success stores the authority", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"code": 100, "authority": "A0001"},
			})
		}))
		defer srv.Close()

		g := newGateway(t, srv.URL)
		tx := pendingTx(10_000)
		if err := g.PrePurchase(tx); err != nil {
			t.Fatalf("prePurchase: %v", err)
		}
		if err := g.Purchase(context.Background(), tx); err != nil {
			t.Fatalf("purchase: %v", err)
		}
		if err := g.PostPurchase(tx); err != nil {
			t.Fatalf("postPurchase: %v", err)
		}
		if tx.GatewayData["authority"] != "A0001" {
			t.Errorf("authority not stored: %v", tx.GatewayData)
		}
		redirect, err := g.PurchaseRedirect()
		if err != nil {
			t.Fatalf("redirect: %v", err)
		}
		if redirect.URL != "https://www.zarinpal.com/pg/StartPay/A0001" {
			t.Errorf("unexpected redirect url %q", redirect.URL)
		}
	})

	t.Run("error envelope code is normalized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data":   map[string]any{},
				"errors": map[string]any{"code": -11, "message": "merchant inactive"},
			})
		}))
		defer srv.Close()

		g := newGateway(t, srv.URL)
		err := g.Purchase(context.Background(), pendingTx(10_000))
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) || gerr.Kind != domain.KindAuthenticationFailed {
			t.Errorf("expected authentication_failed, got %v", err)
		}
	})

	t.Run("amount below the documented minimum is rejected locally", func(t *testing.T) {
		g := newGateway(t, "")
		if err := g.PrePurchase(pendingTx(999)); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestPreVerify(t *testing.T) {
	g := newGateway(t, "")
	tx := pendingTx(10_000)
	tx.GatewayData = map[string]string{"authority": "A0001"}

	t.Run("NOK status fails", func(t *testing.T) {
		err := g.PreVerify(tx, adapter.CallbackRequest{"Authority": "A0001", "Status": "NOK"})
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) {
			t.Errorf("expected a gateway error, got %v", err)
		}
	})

	t.Run("authority mismatch fails", func(t *testing.T) {
		err := g.PreVerify(tx, adapter.CallbackRequest{"Authority": "A9999", "Status": "OK"})
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) || gerr.Kind != domain.KindTokenExpired {
			t.Errorf("expected token_expired, got %v", err)
		}
	})

	t.Run("matching authority passes", func(t *testing.T) {
		if err := g.PreVerify(tx, adapter.CallbackRequest{"Authority": "A0001", "Status": "OK"}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestVerify(t *testing.T) {
	t.Run("success folds ref id and card pan", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"code": 100, "ref_id": 123456, "card_pan": "6037-99xx"},
			})
		}))
		defer srv.Close()

		g := newGateway(t, srv.URL)
		tx := pendingTx(10_000)
		tx.GatewayData = map[string]string{"authority": "A0001"}
		if err := g.PreVerify(tx, adapter.CallbackRequest{"Authority": "A0001", "Status": "OK"}); err != nil {
			t.Fatalf("preVerify: %v", err)
		}
		if err := g.Verify(context.Background(), tx); err != nil {
			t.Fatalf("verify: %v", err)
		}
		if err := g.PostVerify(tx); err != nil {
			t.Fatalf("postVerify: %v", err)
		}
		if tx.TrackingCode != "123456" || tx.ReferenceNumber != "A0001" {
			t.Errorf("identifiers not set: %+v", tx)
		}
	})

	t.Run("already-verified code 101 is treated as success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"code": 101, "ref_id": 123456},
			})
		}))
		defer srv.Close()

		g := newGateway(t, srv.URL)
		tx := pendingTx(10_000)
		tx.GatewayData = map[string]string{"authority": "A0001"}
		_ = g.PreVerify(tx, adapter.CallbackRequest{"Authority": "A0001", "Status": "OK"})
		if err := g.Verify(context.Background(), tx); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("amount mismatch code -50 maps to ErrAmountMismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data":   map[string]any{},
				"errors": map[string]any{"code": -50, "message": "amount differs"},
			})
		}))
		defer srv.Close()

		g := newGateway(t, srv.URL)
		tx := pendingTx(10_000)
		tx.GatewayData = map[string]string{"authority": "A0001"}
		_ = g.PreVerify(tx, adapter.CallbackRequest{"Authority": "A0001", "Status": "OK"})
		if err := g.Verify(context.Background(), tx); !errors.Is(err, domain.ErrAmountMismatch) {
			t.Errorf("expected ErrAmountMismatch, got %v", err)
		}
	})
}
