package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/koorier/onboarding-api/internal/auth"
	"github.com/koorier/onboarding-api/internal/errmap"
	"github.com/koorier/onboarding-api/internal/upstream"
	"github.com/koorier/onboarding-api/internal/validate"
	"github.com/koorier/onboarding-api/internal/wizard"
	"github.com/koorier/onboarding-api/internal/ws"
)

// RegistrationClient defines the upstream calls the wizard handlers need.
// Satisfied by *upstream.Client; narrow interface for testability.
type RegistrationClient interface {
	CheckAvailability(ctx context.Context, username, email string) upstream.AvailabilityResult
	Register(ctx context.Context, payload upstream.RegistrationPayload) (wizard.AccountResponse, error)
}

// WizardHandler handles wizard lifecycle and step endpoints.
type WizardHandler struct {
	registry  *wizard.Registry
	client    RegistrationClient
	hub       *ws.Hub
	jwtSecret string
	fee       decimal.Decimal
	currency  string
}

// NewWizardHandler creates a new WizardHandler.
func NewWizardHandler(registry *wizard.Registry, client RegistrationClient, hub *ws.Hub, jwtSecret string, fee decimal.Decimal, currency string) *WizardHandler {
	return &WizardHandler{
		registry:  registry,
		client:    client,
		hub:       hub,
		jwtSecret: jwtSecret,
		fee:       fee,
		currency:  currency,
	}
}

// RegisterRoutes registers the wizard endpoints on the given Chi router.
// Expected to be mounted at /onboarding/{wid} behind the wizard token.
func (h *WizardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.State)
	r.Post("/fields/validate", h.ValidateField)
	r.Post("/steps/1", h.SubmitStep1)
	r.Post("/zones", h.Zones)
	r.Post("/steps/2", h.SubmitStep2)
	r.Post("/steps/3", h.SubmitAgreement)
	r.Post("/back", h.Back)
	r.Post("/reset", h.Reset)
}

// --- Request / Response types ---

type createWizardResponse struct {
	WizardID uuid.UUID `json:"wizardId"`
	Token    string    `json:"token"`
	Step     int       `json:"step"`
}

type wizardStateResponse struct {
	WizardID      uuid.UUID              `json:"wizardId"`
	Step          int                    `json:"step"`
	Validation    wizard.ValidationState `json:"validation"`
	Form          wizard.FormData        `json:"form"`
	DCName        string                 `json:"dcName,omitempty"`
	SelectedZones []string               `json:"selectedZones"`
	Agreement     bool                   `json:"agreementAccepted"`
	Payment       paymentView            `json:"payment"`
}

type paymentView struct {
	CustomerID     string `json:"customerId,omitempty"`
	WalletBalance  string `json:"walletBalance"`
	PromoApplied   bool   `json:"promoApplied"`
	PromoCode      string `json:"promoCode,omitempty"`
	PromoCredit    string `json:"promoCredit"`
	AmountDue      string `json:"amountDue"`
	AmountDisplay  string `json:"amountDisplay"`
	SelectedMethod string `json:"selectedMethod,omitempty"`
	Processing     bool   `json:"processing"`
}

type validateFieldRequest struct {
	Field    string `json:"field"`
	Value    string `json:"value"`
	Password string `json:"password,omitempty"`
}

type validateFieldResponse struct {
	Field         string   `json:"field"`
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	Strength      int      `json:"strength,omitempty"`
	StrengthLabel string   `json:"strengthLabel,omitempty"`
}

type zonesRequest struct {
	Action string `json:"action"`
	DCName string `json:"dcName,omitempty"`
	Zone   string `json:"zone,omitempty"`
}

type zonesResponse struct {
	DCName         string   `json:"dcName,omitempty"`
	AvailableZones []string `json:"availableZones"`
	SelectedZones  []string `json:"selectedZones"`
}

type agreementRequest struct {
	Accepted bool `json:"accepted"`
}

type backRequest struct {
	Step int `json:"step"`
}

type fieldErrorsResponse struct {
	FieldErrors map[string]string `json:"fieldErrors"`
	Step        int               `json:"step"`
	Message     string            `json:"message,omitempty"`
}

// --- Handlers ---

// Create handles POST /onboarding. Public: there is no account yet. The
// returned token authorizes every subsequent call for this wizard.
func (h *WizardHandler) Create(w http.ResponseWriter, r *http.Request) {
	wz := h.registry.Create()

	token, err := auth.GenerateToken(h.jwtSecret, wz.ID())
	if err != nil {
		log.Printf("ERROR: generate wizard token: %v", err)
		h.registry.Remove(wz.ID())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, createWizardResponse{
		WizardID: wz.ID(),
		Token:    token,
		Step:     wz.Step(),
	})
}

// State handles GET /onboarding/{wid}.
func (h *WizardHandler) State(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse(wz))
}

// ValidateField handles POST /onboarding/{wid}/fields/validate. Mirrors the
// per-keystroke validation: one field in, its verdict out. Password values
// additionally get a strength rating.
func (h *WizardHandler) ValidateField(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req validateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Field == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field is required"})
		return
	}

	res := wz.UpdateField(req.Field, req.Value, req.Password)
	resp := validateFieldResponse{
		Field:  req.Field,
		Valid:  res.Valid,
		Errors: res.Errors,
	}
	if req.Field == "password" {
		resp.Strength, resp.StrengthLabel = validate.PasswordStrength(req.Value)
	}

	eventType := ws.EventFieldStatus
	if !resp.Valid {
		eventType = ws.EventFieldError
	}
	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(eventType, resp))
	writeJSON(w, http.StatusOK, resp)
}

// SubmitStep1 handles POST /onboarding/{wid}/steps/1. Local validation first;
// only a fully valid form triggers the availability round-trip.
func (h *WizardHandler) SubmitStep1(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req wizard.Step1Input
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if fieldErrors := wz.CheckStep1(req); fieldErrors != nil {
		writeJSON(w, http.StatusUnprocessableEntity, fieldErrorsResponse{
			FieldErrors: fieldErrors,
			Step:        wizard.StepIdentity,
		})
		return
	}

	avail := h.client.CheckAvailability(r.Context(), req.UserName, req.Email)
	if !avail.Success {
		fieldErrors := make(map[string]string)
		if avail.UsernameError != "" {
			fieldErrors["userName"] = avail.UsernameError
		}
		if avail.EmailError != "" {
			fieldErrors["email"] = avail.EmailError
		}
		writeJSON(w, http.StatusUnprocessableEntity, fieldErrorsResponse{
			FieldErrors: fieldErrors,
			Step:        wizard.StepIdentity,
		})
		return
	}

	wz.CommitPersonal(req)
	h.broadcastStep(wz)
	writeJSON(w, http.StatusOK, h.stateResponse(wz))
}

// Zones handles POST /onboarding/{wid}/zones. Actions: selectDC, toggle,
// toggleAll.
func (h *WizardHandler) Zones(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req zonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var err error
	switch req.Action {
	case "selectDC":
		_, err = wz.SelectDC(req.DCName)
	case "toggle":
		_, err = wz.ToggleZone(req.Zone)
	case "toggleAll":
		_, err = wz.ToggleAllZones()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown zone action"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	available, _ := wizard.ZonesForDC(wz.DCName())
	writeJSON(w, http.StatusOK, zonesResponse{
		DCName:         wz.DCName(),
		AvailableZones: available,
		SelectedZones:  wz.SelectedZones(),
	})
}

// SubmitStep2 handles POST /onboarding/{wid}/steps/2. A valid form goes
// straight to the upstream registration; upstream rejections are mapped to
// field errors, and an error owned by step 1 navigates the wizard back there.
func (h *WizardHandler) SubmitStep2(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req wizard.Step2Input
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if fieldErrors := wz.CheckStep2(req); fieldErrors != nil {
		writeJSON(w, http.StatusUnprocessableEntity, fieldErrorsResponse{
			FieldErrors: fieldErrors,
			Step:        wizard.StepBusiness,
		})
		return
	}

	business := wz.StageBusiness(req)
	payload := upstream.BuildRegistrationPayload(wz.Form().Personal, business)

	account, err := h.client.Register(r.Context(), payload)
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			h.respondRegistrationError(w, wz, apiErr)
			return
		}
		log.Printf("ERROR: register client: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Registration failed. Please try again."})
		return
	}

	wz.CommitRegistration(business, account)
	h.broadcastStep(wz)
	writeJSON(w, http.StatusOK, h.stateResponse(wz))
}

// respondRegistrationError maps an upstream rejection. Duplicate username or
// email surfaces on step 1, so the wizard navigates back there.
func (h *WizardHandler) respondRegistrationError(w http.ResponseWriter, wz *wizard.Wizard, apiErr *upstream.APIError) {
	parsed := errmap.Parse(apiErr.Body)

	step := wizard.StepBusiness
	if parsed.HasStepError(wizard.StepIdentity) {
		if err := wz.ForceStep(wizard.StepIdentity); err == nil {
			step = wizard.StepIdentity
			h.broadcastStep(wz)
		}
	}

	fieldErrors := make(map[string]string, len(parsed.FieldErrors))
	for _, fe := range parsed.FieldErrors {
		if _, exists := fieldErrors[fe.Field]; !exists {
			fieldErrors[fe.Field] = fe.Message
		}
	}

	writeJSON(w, http.StatusUnprocessableEntity, fieldErrorsResponse{
		FieldErrors: fieldErrors,
		Step:        step,
		Message:     parsed.GeneralMessage,
	})
}

// SubmitAgreement handles POST /onboarding/{wid}/steps/3.
func (h *WizardHandler) SubmitAgreement(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req agreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	wz.SetAgreement(req.Accepted)
	if err := wz.SubmitAgreement(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	// Entering the payment step: establish the amount due.
	wz.UpdatePayment(func(p *wizard.PaymentState) { p.Recompute(h.fee) })

	h.broadcastStep(wz)
	writeJSON(w, http.StatusOK, h.stateResponse(wz))
}

// Back handles POST /onboarding/{wid}/back. Only lower steps are reachable;
// collected data is retained.
func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req backRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := wz.Back(req.Step); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	h.broadcastStep(wz)
	writeJSON(w, http.StatusOK, h.stateResponse(wz))
}

// Reset handles POST /onboarding/{wid}/reset.
func (h *WizardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.lookup(w, r)
	if !ok {
		return
	}

	wz.Reset()
	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventWizardReset, map[string]int{"step": wz.Step()}))
	writeJSON(w, http.StatusOK, h.stateResponse(wz))
}

// --- Helpers ---

// lookup resolves the {wid} path parameter to a live wizard.
func (h *WizardHandler) lookup(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
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

func (h *WizardHandler) stateResponse(wz *wizard.Wizard) wizardStateResponse {
	form := wz.Form()
	// The password never leaves the server once submitted.
	form.Personal.Password = ""

	return wizardStateResponse{
		WizardID:      wz.ID(),
		Step:          wz.Step(),
		Validation:    wz.Validation(),
		Form:          form,
		DCName:        wz.DCName(),
		SelectedZones: wz.SelectedZones(),
		Agreement:     wz.AgreementAccepted(),
		Payment:       h.paymentView(wz.Payment()),
	}
}

func (h *WizardHandler) paymentView(p wizard.PaymentState) paymentView {
	return newPaymentView(p, h.currency)
}

func (h *WizardHandler) broadcastStep(wz *wizard.Wizard) {
	h.hub.BroadcastToWizard(wz.ID(), ws.NewEvent(ws.EventStepChanged, map[string]int{"step": wz.Step()}))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
