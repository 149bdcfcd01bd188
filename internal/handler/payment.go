package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/koorier/onboarding-api/internal/auth"
	"github.com/koorier/onboarding-api/internal/enum"
	"github.com/koorier/onboarding-api/internal/payment"
	"github.com/koorier/onboarding-api/internal/wizard"
	"github.com/koorier/onboarding-api/internal/ws"
)

// PaymentHandler handles the onboarding fee endpoints: promo codes, payment
// initiation, and the gateway return leg.
type PaymentHandler struct {
	registry  *wizard.Registry
	orch      *payment.Orchestrator
	hub       *ws.Hub
	jwtSecret string
	currency  string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(registry *wizard.Registry, orch *payment.Orchestrator, hub *ws.Hub, jwtSecret, currency string) *PaymentHandler {
	return &PaymentHandler{
		registry:  registry,
		orch:      orch,
		hub:       hub,
		jwtSecret: jwtSecret,
		currency:  currency,
	}
}

// RegisterRoutes registers the payment endpoints on the given Chi router.
// Expected to be mounted at /onboarding/{wid} behind the wizard token. The
// gateway return route is registered separately: the redirect arrives with no
// Authorization header.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/promo/apply", h.ApplyPromo)
	r.Post("/promo/remove", h.RemovePromo)
	r.Post("/pay", h.Pay)
}

// --- Request / Response types ---

type applyPromoRequest struct {
	Code string `json:"code"`
}

type payRequest struct {
	Method string `json:"method"`
}

type payResponse struct {
	Status      payment.Status `json:"status"`
	Completed   bool           `json:"completed"`
	CheckoutURL string         `json:"checkoutUrl,omitempty"`
	Gateway     string         `json:"gateway,omitempty"`
	ReferenceID string         `json:"referenceId,omitempty"`
	Step        int            `json:"step"`
	Payment     paymentView    `json:"payment"`
	Message     string         `json:"message,omitempty"`
}

type returnResponse struct {
	Status    payment.Status `json:"status"`
	WizardID  uuid.UUID      `json:"wizardId"`
	Token     string         `json:"token"`
	Step      int            `json:"step"`
	Verified  bool           `json:"verified"`
	Cancelled bool           `json:"cancelled"`
	AccountID string         `json:"accountId,omitempty"`
	Message   string         `json:"message,omitempty"`
}

func newPaymentView(p wizard.PaymentState, currency string) paymentView {
	return paymentView{
		CustomerID:     p.CustomerID,
		WalletBalance:  p.WalletBalance.StringFixed(2),
		PromoApplied:   p.PromoApplied,
		PromoCode:      p.PromoCode,
		PromoCredit:    p.PromoCredit.StringFixed(2),
		AmountDue:      p.AmountDue.StringFixed(2),
		AmountDisplay:  "$" + p.AmountDue.StringFixed(2) + " " + currency,
		SelectedMethod: p.SelectedMethod,
		Processing:     p.Processing,
	}
}

// --- Handlers ---

// ApplyPromo handles POST /onboarding/{wid}/promo/apply.
func (h *PaymentHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req applyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	pay, err := h.orch.ApplyPromo(r.Context(), wz, req.Code)
	if err != nil {
		if errors.Is(err, payment.ErrPromoAlreadyApplied) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	view := newPaymentView(pay, h.currency)
	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventPaymentStatus, view))
	writeJSON(w, http.StatusOK, view)
}

// RemovePromo handles POST /onboarding/{wid}/promo/remove.
func (h *PaymentHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	pay, err := h.orch.RemovePromo(r.Context(), wz)
	if err != nil {
		if errors.Is(err, payment.ErrNoPromoApplied) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: remove promo: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Could not remove promo code. Please try again."})
		return
	}

	view := newPaymentView(pay, h.currency)
	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventPaymentStatus, view))
	writeJSON(w, http.StatusOK, view)
}

// Pay handles POST /onboarding/{wid}/pay. A wallet-covered fee settles in
// place; otherwise the response carries the gateway checkout URL.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if wz.Step() != wizard.StepPayment {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "wizard is not on the payment step"})
		return
	}

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Method != enum.GatewayStripe && req.Method != enum.GatewayPayPal {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "method must be STRIPE or PAYPAL"})
		return
	}

	out, err := h.orch.Initiate(r.Context(), wz, req.Method)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentInFlight) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: initiate payment: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Payment could not be initiated. Please try again."})
		return
	}

	resp := payResponse{
		Status:      out.Status,
		Completed:   out.Completed,
		CheckoutURL: out.CheckoutURL,
		Gateway:     out.Gateway,
		ReferenceID: out.ReferenceID,
		Step:        wz.Step(),
		Payment:     newPaymentView(wz.Payment(), h.currency),
		Message:     out.Message,
	}

	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventPaymentStatus, resp))
	if out.Completed {
		h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventStepChanged, map[string]int{"step": wz.Step()}))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Return handles GET /onboarding/return, the gateway redirect back. The
// request arrives with no Authorization header; the reference id in the query
// is the only credential, and a fresh wizard token is minted for the resumed
// session.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	out, err := h.orch.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrMissingReference):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, payment.ErrSessionExpired):
			writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: handle gateway return: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Payment could not be verified. Please try again."})
		}
		return
	}

	// The live wizard may be gone (restart, other instance); rebuild it from
	// the snapshot under its original id.
	wz := h.registry.Adopt(out.Snapshot.WizardID)
	wz.Restore(out.Snapshot.Form, out.Snapshot.Payment)

	if out.Verified {
		wz.CompletePayment(out.Account)
	}

	token, err := auth.GenerateToken(h.jwtSecret, wz.ID())
	if err != nil {
		log.Printf("ERROR: generate wizard token on return: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := returnResponse{
		Status:    out.Status,
		WizardID:  wz.ID(),
		Token:     token,
		Step:      wz.Step(),
		Verified:  out.Verified,
		Cancelled: out.Cancelled,
		Message:   out.Message,
	}
	if out.Verified {
		if form := wz.Form(); form.Response != nil {
			resp.AccountID = form.Response.DisplayAccountID()
		}
	}

	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventPaymentStatus, resp))
	if out.Verified {
		h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventStepChanged, map[string]int{"step": wz.Step()}))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// lookup resolves the {wid} path parameter to a live wizard.
func (h *PaymentHandler) lookup(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	wid, err := uuid.Parse(chi.URLParam(r, "wid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid wizard ID"})
		return nil, false
	}

	wz, ok := h.registry.Get(wid)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "wizard not found"})
		return nil, false
	}
	return wz, true
}
