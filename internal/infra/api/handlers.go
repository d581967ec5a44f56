package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"iran-payment/internal/domain"
	"iran-payment/internal/domain/model"
	"iran-payment/internal/domain/ports/adapter"
	"iran-payment/internal/infra/logging"
)

type initiateRequest struct {
	Gateway     string `json:"gateway"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url"`
	PayableType string `json:"payable_type"`
	PayableID   string `json:"payable_id"`
	Description string `json:"description"`
}

type redirectView struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Title  string `json:"title"`
}

type transactionView struct {
	Code            string            `json:"code"`
	Status          string            `json:"status"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Gateway         string            `json:"gateway"`
	TrackingCode    string            `json:"tracking_code,omitempty"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	GatewayData     map[string]string `json:"gateway_data,omitempty"`
}

type initiateResponse struct {
	Transaction transactionView `json:"transaction"`
	Redirect    redirectView    `json:"redirect"`
}

func viewOf(t *model.Transaction) transactionView {
	return transactionView{
		Code:            t.Code,
		Status:          string(t.Status),
		Amount:          t.Amount,
		Currency:        string(t.Currency),
		Gateway:         t.GatewayName,
		TrackingCode:    t.TrackingCode,
		ReferenceNumber: t.ReferenceNumber,
		GatewayData:     t.GatewayData,
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]string{"error": err.Error()}
	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		body["kind"] = string(gerr.Kind)
		body["gateway"] = gerr.Gateway
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	session, err := s.orc.Create(req.Gateway)
	if err != nil {
		s.writeError(w, err)
		return
	}
	currency := model.Currency(req.Currency)
	if currency == "" {
		currency = model.CurrencyIRR
	}
	session.SetAmount(req.Amount, currency).SetDescription(req.Description)
	if req.CallbackURL != "" {
		session.SetCallbackURL(req.CallbackURL)
	}
	if req.PayableType != "" || req.PayableID != "" {
		session.SetPayable(req.PayableType, req.PayableID)
	}

	rctx := logging.WithGateway(r.Context(), req.Gateway)
	rctx = logging.WithRequestID(rctx, middleware.GetReqID(r.Context()))
	ctx, cancel := context.WithTimeout(rctx, 30*time.Second)
	defer cancel()
	if _, err := session.Ready(ctx); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("initiate failed")
		s.writeError(w, err)
		return
	}

	redirect, err := session.Redirect()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(initiateResponse{
		Transaction: viewOf(session.Transaction()),
		Redirect:    redirectView(redirect),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	session, err := s.orc.FindTransaction(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(viewOf(session.Transaction()))
}

// handleCallback is where the bank redirects the user's browser. The
// transaction code travels in the `tc` query parameter the orchestrator
// appended to the callback URL; everything else in the query/form is the
// gateway's payload, handed to PreVerify untouched.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	cb := callbackPayload(r)
	code := cb["tc"]
	if code == "" {
		s.renderResult(w, http.StatusBadRequest, resultPage{Msg: "missing transaction code"})
		return
	}

	rctx := logging.WithTxCode(r.Context(), code)
	rctx = logging.WithRequestID(rctx, middleware.GetReqID(r.Context()))
	ctx, cancel := context.WithTimeout(rctx, 30*time.Second)
	defer cancel()

	session, err := s.orc.FindTransaction(ctx, code)
	if err != nil {
		s.renderResult(w, statusFor(err), resultPage{Msg: "transaction not found"})
		return
	}

	if _, err := session.Confirm(ctx, cb); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("confirm failed")
		s.renderResult(w, statusFor(err), resultPage{
			Msg:  err.Error(),
			Code: code,
		})
		return
	}

	t := session.Transaction()
	s.renderResult(w, http.StatusOK, resultPage{
		OK:           true,
		Msg:          "payment verified",
		Code:         t.Code,
		TrackingCode: t.TrackingCode,
	})
}

func callbackPayload(r *http.Request) adapter.CallbackRequest {
	cb := adapter.CallbackRequest{}
	_ = r.ParseForm()
	for k, vs := range r.Form {
		if len(vs) > 0 {
			cb[k] = vs[0]
		}
	}
	return cb
}

type resultPage struct {
	OK           bool
	Msg          string
	Code         string
	TrackingCode string
}

var page = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Successful{{else}}Result{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}Payment Successful{{else}}Payment Not Completed{{end}}</h2>
  <p>{{.Msg}}</p>
  {{if .Code}}<div class="small">transaction: {{.Code}}</div>{{end}}
  {{if .TrackingCode}}<div class="small">tracking code: {{.TrackingCode}}</div>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderResult(w http.ResponseWriter, status int, data resultPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, data)
}
