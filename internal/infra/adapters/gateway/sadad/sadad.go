package sadad

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"iran-payment/internal/config"
	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/adapter"
	"iran-payment/internal/infra/transport"
)

const gatewayName = "sadad"

const (
	defaultBaseURL = "https://sadad.shaparak.ir"
	requestPath    = "/vpg/api/v0/Request/PaymentRequest"
	verifyPath     = "/vpg/api/v0/Advice/Verify"
	purchasePath   = "/VPG/Purchase?Token={token}"

	localDateTimeLayout = "2006-01-02 15:04:05"
)

var _ adapter.Gateway = (*Gateway)(nil)

// Gateway implements the Sadad (Bank Melli) IPG: signed token request,
// GET redirect to the purchase page, signed advice verification.
//
// Gateway data keys written at post-purchase: merchant_id, terminal_id,
// token, app_name, local_date_time, purchase_description. At post-verify:
// system_trace_number, retrival_reference_number, verify_description.
type Gateway struct {
	defaults config.SadadConfig
	rt       transport.Requester

	merchantID  string
	terminalID  string
	terminalKey string
	appName     string
	callbackURL string
	baseURL     string

	// accepted amount range in rial, per the IPG contract
	minAmount int64
	maxAmount int64

	orderID       string
	token         string
	localDateTime time.Time

	systemTraceNo  string
	retrievalRefNo string
	description    string
}

func New(defaults config.SadadConfig, rt transport.Requester) *Gateway {
	return &Gateway{
		defaults:  defaults,
		rt:        rt,
		minAmount: 10_000,
		maxAmount: 1_000_000_000,
	}
}

func (g *Gateway) Name() string { return gatewayName }

// Initialize merges explicit params over configuration defaults. Recognized
// params: merchant_id, terminal_id, terminal_key, app_name, callback_url,
// base_url.
func (g *Gateway) Initialize(params adapter.Params) error {
	pick := func(key, def string) string {
		if v, ok := params[key]; ok && v != "" {
			return v
		}
		return def
	}
	g.merchantID = pick("merchant_id", g.defaults.MerchantID)
	g.terminalID = pick("terminal_id", g.defaults.TerminalID)
	g.terminalKey = pick("terminal_key", g.defaults.TerminalKey)
	g.appName = pick("app_name", g.defaults.AppName)
	g.callbackURL = pick("callback_url", g.defaults.CallbackURL)
	g.baseURL = strings.TrimSuffix(pick("base_url", g.defaults.BaseURL), "/")
	if g.baseURL == "" {
		g.baseURL = defaultBaseURL
	}
	g.localDateTime = time.Now()

	if g.merchantID == "" || g.terminalID == "" || g.terminalKey == "" {
		return fmt.Errorf("%w: sadad requires merchant_id, terminal_id and terminal_key", domain.ErrInvalidConfiguration)
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
	if amount < g.minAmount || amount > g.maxAmount {
		return fmt.Errorf("%w: sadad accepts %d..%d IRR, got %d", domain.ErrInvalidAmount, g.minAmount, g.maxAmount, amount)
	}
	if g.orderID == "" {
		g.orderID = tx.ID
	}
	return nil
}

type purchaseRequest struct {
	TerminalID      string `json:"TerminalId"`
	MerchantID      string `json:"MerchantId"`
	Amount          int64  `json:"Amount"`
	SignData        string `json:"SignData"`
	ReturnURL       string `json:"ReturnUrl"`
	LocalDateTime   string `json:"LocalDateTime"`
	OrderID         string `json:"OrderId"`
	ApplicationName string `json:"ApplicationName,omitempty"`
}

type purchaseResponse struct {
	ResCode     *int64 `json:"ResCode"`
	Token       string `json:"Token"`
	Description string `json:"Description"`
}

func (g *Gateway) Purchase(ctx context.Context, tx *model.Transaction) error {
	amount, err := g.preparedAmount(tx)
	if err != nil {
		return err
	}
	signData, err := Sign(fmt.Sprintf("%s;%s;%d", g.terminalID, g.orderID, amount), g.terminalKey)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(purchaseRequest{
		TerminalID:      g.terminalID,
		MerchantID:      g.merchantID,
		Amount:          amount,
		SignData:        signData,
		ReturnURL:       g.callbackURL,
		LocalDateTime:   g.localDateTime.Format(localDateTimeLayout),
		OrderID:         g.orderID,
		ApplicationName: g.appName,
	})

	raw, err := g.rt.Request(ctx, g.baseURL+requestPath, "POST", body)
	if err != nil {
		return err
	}

	var res purchaseResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrUnexpectedResponse, raw)
	}
	if res.ResCode != nil && *res.ResCode != 0 {
		return normalize(*res.ResCode, res.Description)
	}
	if res.Token == "" {
		return fmt.Errorf("%w: no token in %s", domain.ErrUnexpectedResponse, raw)
	}

	g.token = res.Token
	g.description = res.Description
	return nil
}

func (g *Gateway) PostPurchase(tx *model.Transaction) error {
	tx.MergeGatewayData(map[string]string{
		"merchant_id":          g.merchantID,
		"terminal_id":          g.terminalID,
		"token":                g.token,
		"app_name":             g.appName,
		"local_date_time":      g.localDateTime.Format(localDateTimeLayout),
		"purchase_description": g.description,
	})
	return nil
}

func (g *Gateway) PurchaseRedirect() (adapter.Redirect, error) {
	if g.token == "" {
		return adapter.Redirect{}, domain.ErrNotPurchased
	}
	return adapter.Redirect{
		URL:    strings.Replace(g.baseURL+purchasePath, "{token}", g.token, 1),
		Method: "GET",
		Title:  "Bank Melli - Sadad e-payment",
	}, nil
}

func (g *Gateway) PreVerify(tx *model.Transaction, cb adapter.CallbackRequest) error {
	if rc, ok := cb["ResCode"]; ok && rc != "0" {
		var code int64
		if _, err := fmt.Sscanf(rc, "%d", &code); err != nil {
			return fmt.Errorf("%w: ResCode=%q", domain.ErrUnexpectedResponse, rc)
		}
		return normalize(code, cb["Description"])
	}

	token := tx.GatewayData["token"]
	if token == "" {
		return normalize(codeTokenMismatch, "")
	}
	if echoed, ok := cb["Token"]; ok && echoed != token {
		return normalize(codeTokenMismatch, "")
	}

	g.token = token
	return nil
}

type verifyRequest struct {
	Token    string `json:"Token"`
	SignData string `json:"SignData"`
}

type verifyResponse struct {
	ResCode       *int64       `json:"ResCode"`
	Amount        *json.Number `json:"Amount"`
	SystemTraceNo *json.Number `json:"SystemTraceNo"`
	RetrivalRefNo *json.Number `json:"RetrivalRefNo"`
	Description   string       `json:"Description"`
}

func (g *Gateway) Verify(ctx context.Context, tx *model.Transaction) error {
	signData, err := Sign(g.token, g.terminalKey)
	if err != nil {
		return err
	}
	body, _ := json.Marshal(verifyRequest{Token: g.token, SignData: signData})

	raw, err := g.rt.Request(ctx, g.baseURL+verifyPath, "POST", body)
	if err != nil {
		return err
	}

	var res verifyResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrUnexpectedResponse, raw)
	}
	if res.ResCode == nil || res.Amount == nil || res.SystemTraceNo == nil || res.RetrivalRefNo == nil {
		return fmt.Errorf("%w: missing required fields in %s", domain.ErrUnexpectedResponse, raw)
	}
	if *res.ResCode != 0 {
		return normalize(*res.ResCode, res.Description)
	}

	expected, err := g.preparedAmount(tx)
	if err != nil {
		return err
	}
	settled, err := res.Amount.Int64()
	if err != nil {
		return fmt.Errorf("%w: Amount=%q", domain.ErrUnexpectedResponse, res.Amount.String())
	}
	if settled != expected {
		return normalize(codeAmountMismatch, fmt.Sprintf("settled %d, authorized %d", settled, expected))
	}

	g.systemTraceNo = res.SystemTraceNo.String()
	g.retrievalRefNo = res.RetrivalRefNo.String()
	g.description = res.Description
	return nil
}

func (g *Gateway) PostVerify(tx *model.Transaction) error {
	tx.TrackingCode = g.systemTraceNo
	tx.ReferenceNumber = g.retrievalRefNo
	tx.MergeGatewayData(map[string]string{
		"system_trace_number":       g.systemTraceNo,
		"retrival_reference_number": g.retrievalRefNo,
		"verify_description":        g.description,
	})
	return nil
}
