package zarinpal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"iran-payment/internal/config"
	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/adapter"
	"iran-payment/internal/infra/transport"
)

const gatewayName = "zarinpal"

const (
	productionAPIBase = "https://api.zarinpal.com/pg/v4"
	sandboxAPIBase    = "https://sandbox.zarinpal.com/pg/v4"
	productionPayBase = "https://www.zarinpal.com/pg/StartPay/"
	sandboxPayBase    = "https://sandbox.zarinpal.com/pg/StartPay/"

	// documented minimum for a payment request, in rial
	minAmount = 1_000
)

var _ adapter.Gateway = (*Gateway)(nil)

// Gateway implements the ZarinPal REST v4 flow: unauthenticated JSON
// request/verify keyed by merchant id, with a string authority and a GET
// redirect to StartPay.
//
// Gateway data keys written at post-purchase: merchant_id, authority,
// fee_type. At post-verify: ref_id, card_pan.
type Gateway struct {
	defaults config.ZarinpalConfig
	rt       transport.Requester

	merchantID  string
	callbackURL string
	description string
	apiBase     string
	payBase     string

	authority string
	refID     string
	cardPan   string
	feeType   string
}

func New(defaults config.ZarinpalConfig, rt transport.Requester) *Gateway {
	return &Gateway{defaults: defaults, rt: rt}
}

func (g *Gateway) Name() string { return gatewayName }

// Initialize merges explicit params over configuration defaults. Recognized
// params: merchant_id, callback_url, description, base_url, pay_base_url.
func (g *Gateway) Initialize(params adapter.Params) error {
	pick := func(key, def string) string {
		if v, ok := params[key]; ok && v != "" {
			return v
		}
		return def
	}
	g.merchantID = pick("merchant_id", g.defaults.MerchantID)
	g.callbackURL = pick("callback_url", g.defaults.CallbackURL)
	g.description = pick("description", g.defaults.Description)

	apiBase, payBase := productionAPIBase, productionPayBase
	if g.defaults.Sandbox {
		apiBase, payBase = sandboxAPIBase, sandboxPayBase
	}
	g.apiBase = strings.TrimSuffix(pick("base_url", apiBase), "/")
	g.payBase = pick("pay_base_url", payBase)

	if g.merchantID == "" {
		return fmt.Errorf("%w: zarinpal requires merchant_id", domain.ErrInvalidConfiguration)
	}
	return nil
}

func (g *Gateway) preparedAmount(tx *model.Transaction) (int64, error) {
	return model.NormalizeAmount(tx.Amount, tx.Currency, model.CurrencyIRR)
}

func (g *Gateway) PrePurchase(tx *model.Transaction) error {
	amount, err := g.preparedAmount(tx)
	if err != nil {
		return err
	}
	if amount < minAmount {
		return fmt.Errorf("%w: zarinpal accepts at least %d IRR, got %d", domain.ErrInvalidAmount, minAmount, amount)
	}
	return nil
}

type requestEnvelope struct {
	Data struct {
		Code      int64  `json:"code"`
		Message   string `json:"message"`
		Authority string `json:"authority"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

func (g *Gateway) Purchase(ctx context.Context, tx *model.Transaction) error {
	amount, err := g.preparedAmount(tx)
	if err != nil {
		return err
	}
	description := g.description
	if description == "" {
		description = tx.Description
	}
	body, _ := json.Marshal(map[string]any{
		"merchant_id":  g.merchantID,
		"amount":       amount,
		"currency":     string(model.CurrencyIRR),
		"description":  description,
		"callback_url": g.callbackURL,
	})

	raw, err := g.rt.Request(ctx, g.apiBase+"/payment/request.json", "POST", body)
	if err != nil {
		return err
	}

	var res requestEnvelope
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrUnexpectedResponse, raw)
	}
	if code := envelopeCode(res.Data.Code, res.Errors); code != 100 {
		return normalize(code, res.Data.Message)
	}
	if res.Data.Authority == "" {
		return fmt.Errorf("%w: no authority in %s", domain.ErrUnexpectedResponse, raw)
	}

	g.authority = res.Data.Authority
	return nil
}

func (g *Gateway) PostPurchase(tx *model.Transaction) error {
	tx.MergeGatewayData(map[string]string{
		"merchant_id": g.merchantID,
		"authority":   g.authority,
	})
	return nil
}

func (g *Gateway) PurchaseRedirect() (adapter.Redirect, error) {
	if g.authority == "" {
		return adapter.Redirect{}, domain.ErrNotPurchased
	}
	return adapter.Redirect{
		URL:    g.payBase + g.authority,
		Method: "GET",
		Title:  "ZarinPal",
	}, nil
}

func (g *Gateway) PreVerify(tx *model.Transaction, cb adapter.CallbackRequest) error {
	if status, ok := cb["Status"]; ok && status != "OK" {
		return normalize(codeSessionFailed, "")
	}

	authority := tx.GatewayData["authority"]
	if authority == "" {
		return normalize(codeInvalidAuthority, "")
	}
	if echoed, ok := cb["Authority"]; ok && echoed != authority {
		return normalize(codeInvalidAuthority, "")
	}

	g.authority = authority
	return nil
}

type verifyEnvelope struct {
	Data struct {
		Code    int64       `json:"code"`
		Message string      `json:"message"`
		RefID   json.Number `json:"ref_id"`
		CardPan string      `json:"card_pan"`
		FeeType string      `json:"fee_type"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

func (g *Gateway) Verify(ctx context.Context, tx *model.Transaction) error {
	amount, err := g.preparedAmount(tx)
	if err != nil {
		return err
	}
	body, _ := json.Marshal(map[string]any{
		"merchant_id": g.merchantID,
		"amount":      amount,
		"authority":   g.authority,
	})

	raw, err := g.rt.Request(ctx, g.apiBase+"/payment/verify.json", "POST", body)
	if err != nil {
		return err
	}

	var res verifyEnvelope
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrUnexpectedResponse, raw)
	}
	if code := envelopeCode(res.Data.Code, res.Errors); code != 100 && code != 101 {
		return normalize(code, res.Data.Message)
	}
	if res.Data.RefID.String() == "" {
		return fmt.Errorf("%w: no ref_id in %s", domain.ErrUnexpectedResponse, raw)
	}

	g.refID = res.Data.RefID.String()
	g.cardPan = res.Data.CardPan
	g.feeType = res.Data.FeeType
	return nil
}

func (g *Gateway) PostVerify(tx *model.Transaction) error {
	tx.TrackingCode = g.refID
	tx.ReferenceNumber = g.authority
	tx.MergeGatewayData(map[string]string{
		"ref_id":   g.refID,
		"card_pan": g.cardPan,
		"fee_type": g.feeType,
	})
	return nil
}

// envelopeCode extracts the effective result code: the data code when set,
// otherwise the code from the errors object ZarinPal returns on failure.
func envelopeCode(dataCode int64, rawErrors json.RawMessage) int64 {
	if dataCode != 0 {
		return dataCode
	}
	var e struct {
		Code    json.Number `json:"code"`
		Message string      `json:"message"`
	}
	if len(rawErrors) > 0 && json.Unmarshal(rawErrors, &e) == nil {
		if n, err := strconv.ParseInt(e.Code.String(), 10, 64); err == nil && n != 0 {
			return n
		}
	}
	return dataCode
}
