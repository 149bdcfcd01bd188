package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/koorier/onboarding-api/internal/handler"
	"github.com/koorier/onboarding-api/internal/upstream"
	"github.com/koorier/onboarding-api/internal/wizard"
	"github.com/koorier/onboarding-api/internal/ws"
)

// fakeRegClient is a canned-response registration client.
type fakeRegClient struct {
	avail       upstream.AvailabilityResult
	account     wizard.AccountResponse
	registerErr error
}

func (f *fakeRegClient) CheckAvailability(_ context.Context, _, _ string) upstream.AvailabilityResult {
	return f.avail
}

func (f *fakeRegClient) Register(_ context.Context, _ upstream.RegistrationPayload) (wizard.AccountResponse, error) {
	if f.registerErr != nil {
		return wizard.AccountResponse{}, f.registerErr
	}
	return f.account, nil
}

func bothAvailable() upstream.AvailabilityResult {
	return upstream.AvailabilityResult{UsernameAvailable: true, EmailAvailable: true, Success: true}
}

type testEnv struct {
	registry *wizard.Registry
	client   *fakeRegClient
	router   chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registry := wizard.NewRegistry()
	client := &fakeRegClient{avail: bothAvailable(), account: wizard.AccountResponse{CustomerID: "42"}}
	hub := ws.NewHub()
	go hub.Run()

	fee := decimal.RequireFromString("50.00")
	h := handler.NewWizardHandler(registry, client, hub, "test-secret", fee, "CAD")

	r := chi.NewRouter()
	r.Post("/onboarding", h.Create)
	r.Route("/onboarding/{wid}", h.RegisterRoutes)

	return &testEnv{registry: registry, client: client, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createWizard(t *testing.T) uuid.UUID {
	t.Helper()
	rr := e.do(t, "POST", "/onboarding", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create wizard: status %d, body %s", rr.Code, rr.Body)
	}
	var resp struct {
		WizardID uuid.UUID `json:"wizardId"`
		Token    string    `json:"token"`
		Step     int       `json:"step"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("create wizard: empty token")
	}
	if resp.Step != wizard.StepIdentity {
		t.Fatalf("create wizard: step %d, want 1", resp.Step)
	}
	return resp.WizardID
}

func validStep1() map[string]string {
	return map[string]string{
		"firstName":       "Jane",
		"lastName":        "Doe",
		"userName":        "janedoe",
		"email":           "jane@test.com",
		"password":        "Str0ng!pass",
		"confirmPassword": "Str0ng!pass",
	}
}

func validStep2() map[string]string {
	return map[string]string{
		"businessName":  "Acme Couriers",
		"businessEmail": "ops@acme.com",
		"addressOne":    "12 Main St",
		"city":          "Vancouver",
		"province":      "BC",
		"postalCode":    "V6B 1A1",
	}
}

// advanceToStep2 runs a wizard through step 1.
func (e *testEnv) advanceToStep2(t *testing.T, wid uuid.UUID) {
	t.Helper()
	rr := e.do(t, "POST", "/onboarding/"+wid.String()+"/steps/1", validStep1())
	if rr.Code != http.StatusOK {
		t.Fatalf("step 1: status %d, body %s", rr.Code, rr.Body)
	}
}

// advanceToStep3 runs a wizard through steps 1 and 2.
func (e *testEnv) advanceToStep3(t *testing.T, wid uuid.UUID) {
	t.Helper()
	e.advanceToStep2(t, wid)
	e.selectVancouverZones(t, wid)
	rr := e.do(t, "POST", "/onboarding/"+wid.String()+"/steps/2", validStep2())
	if rr.Code != http.StatusOK {
		t.Fatalf("step 2: status %d, body %s", rr.Code, rr.Body)
	}
}

func (e *testEnv) selectVancouverZones(t *testing.T, wid uuid.UUID) {
	t.Helper()
	base := "/onboarding/" + wid.String() + "/zones"
	rr := e.do(t, "POST", base, map[string]string{"action": "selectDC", "dcName": "Vancouver"})
	if rr.Code != http.StatusOK {
		t.Fatalf("selectDC: status %d, body %s", rr.Code, rr.Body)
	}
	rr = e.do(t, "POST", base, map[string]string{"action": "toggleAll"})
	if rr.Code != http.StatusOK {
		t.Fatalf("toggleAll: status %d, body %s", rr.Code, rr.Body)
	}
}

func TestCreateWizard(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	if _, ok := env.registry.Get(wid); !ok {
		t.Fatal("wizard not registered")
	}
}

func TestState_UnknownWizard(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/onboarding/"+uuid.NewString(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestValidateField_ShortUsername(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/fields/validate", map[string]string{
		"field": "userName",
		"value": "ab",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Valid {
		t.Error("valid: got true for 2-char username")
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != "Username must be at least 3 characters" {
		t.Errorf("errors: got %v", resp.Errors)
	}
}

func TestValidateField_PasswordStrength(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/fields/validate", map[string]string{
		"field": "password",
		"value": "Abcdefg1!",
	})

	var resp struct {
		Valid         bool   `json:"valid"`
		Strength      int    `json:"strength"`
		StrengthLabel string `json:"strengthLabel"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Valid {
		t.Error("valid: got false")
	}
	if resp.Strength != 4 || resp.StrengthLabel != "strong" {
		t.Errorf("strength: got %d %q", resp.Strength, resp.StrengthLabel)
	}
}

func TestSubmitStep1_LocalValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	body := validStep1()
	body["userName"] = "ab"
	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/1", body)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	var resp struct {
		FieldErrors map[string]string `json:"fieldErrors"`
		Step        int               `json:"step"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.FieldErrors["userName"] != "Username must be at least 3 characters" {
		t.Errorf("fieldErrors: got %v", resp.FieldErrors)
	}
	if resp.Step != wizard.StepIdentity {
		t.Errorf("step: got %d", resp.Step)
	}

	// No remote call happened; the wizard stays on step 1.
	wz, _ := env.registry.Get(wid)
	if wz.Step() != wizard.StepIdentity {
		t.Errorf("wizard step: got %d", wz.Step())
	}
}

func TestSubmitStep1_UsernameTaken(t *testing.T) {
	env := newTestEnv(t)
	env.client.avail = upstream.AvailabilityResult{
		EmailAvailable: true,
		UsernameError:  "Username is already taken. Please choose another.",
	}
	wid := env.createWizard(t)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/1", validStep1())
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	var resp struct {
		FieldErrors map[string]string `json:"fieldErrors"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.FieldErrors["userName"] == "" {
		t.Errorf("fieldErrors: got %v, want userName error", resp.FieldErrors)
	}
}

func TestSubmitStep1_Success(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/1", validStep1())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body)
	}

	var resp struct {
		Step int `json:"step"`
		Form struct {
			Personal wizard.PersonalInfo `json:"personal"`
		} `json:"form"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Step != wizard.StepBusiness {
		t.Errorf("step: got %d, want 2", resp.Step)
	}
	if resp.Form.Personal.Password != "" {
		t.Error("password echoed in state response")
	}
	if resp.Form.Personal.Email != "jane@test.com" {
		t.Errorf("email: got %q", resp.Form.Personal.Email)
	}
}

func TestZones_UnknownDC(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/zones", map[string]string{
		"action": "selectDC", "dcName": "Calgary",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestZones_SelectAndToggle(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)
	base := "/onboarding/" + wid.String() + "/zones"

	rr := env.do(t, "POST", base, map[string]string{"action": "selectDC", "dcName": "Vancouver"})
	if rr.Code != http.StatusOK {
		t.Fatalf("selectDC: status %d", rr.Code)
	}
	var resp struct {
		AvailableZones []string `json:"availableZones"`
		SelectedZones  []string `json:"selectedZones"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.AvailableZones) != 6 {
		t.Errorf("Vancouver zones: got %d, want 6", len(resp.AvailableZones))
	}
	if len(resp.SelectedZones) != 0 {
		t.Errorf("selection not empty after selectDC: %v", resp.SelectedZones)
	}

	zone := resp.AvailableZones[0]
	rr = env.do(t, "POST", base, map[string]string{"action": "toggle", "zone": zone})
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.SelectedZones) != 1 || resp.SelectedZones[0] != zone {
		t.Errorf("selection after toggle: %v", resp.SelectedZones)
	}
}

func TestSubmitStep2_MissingZones(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)
	env.advanceToStep2(t, wid)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/2", validStep2())
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	var resp struct {
		FieldErrors map[string]string `json:"fieldErrors"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.FieldErrors["dcName"] == "" || resp.FieldErrors["fsaZones"] == "" {
		t.Errorf("fieldErrors: got %v", resp.FieldErrors)
	}
}

func TestSubmitStep2_Success(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)
	env.advanceToStep3(t, wid)

	wz, _ := env.registry.Get(wid)
	if wz.Step() != wizard.StepAgreement {
		t.Errorf("step: got %d, want 3", wz.Step())
	}
	if wz.Payment().CustomerID != "42" {
		t.Errorf("payment customer: got %q", wz.Payment().CustomerID)
	}
	form := wz.Form()
	if form.Business.DCName != "Vancouver" || len(form.Business.ServiceFsaZones) != 6 {
		t.Errorf("business: %+v", form.Business)
	}
}

func TestSubmitStep2_DuplicateEmailNavigatesBack(t *testing.T) {
	env := newTestEnv(t)
	env.client.registerErr = &upstream.APIError{
		StatusCode: http.StatusConflict,
		Body:       []byte(`{"detail":"EMAIL_ALREADY_EXISTS"}`),
	}
	wid := env.createWizard(t)
	env.advanceToStep2(t, wid)
	env.selectVancouverZones(t, wid)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/2", validStep2())
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body)
	}

	var resp struct {
		FieldErrors map[string]string `json:"fieldErrors"`
		Step        int               `json:"step"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.FieldErrors["email"] != "This email is already registered" {
		t.Errorf("fieldErrors: got %v", resp.FieldErrors)
	}
	if resp.Step != wizard.StepIdentity {
		t.Errorf("step: got %d, want navigate back to 1", resp.Step)
	}

	wz, _ := env.registry.Get(wid)
	if wz.Step() != wizard.StepIdentity {
		t.Errorf("wizard step: got %d, want 1", wz.Step())
	}
}

func TestSubmitStep2_BusinessEmailConflictStaysOnStep2(t *testing.T) {
	env := newTestEnv(t)
	env.client.registerErr = &upstream.APIError{
		StatusCode: http.StatusConflict,
		Body:       []byte(`{"detail":"BUSINESS_EMAIL_ALREADY_EXISTS"}`),
	}
	wid := env.createWizard(t)
	env.advanceToStep2(t, wid)
	env.selectVancouverZones(t, wid)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/2", validStep2())

	var resp struct {
		FieldErrors map[string]string `json:"fieldErrors"`
		Step        int               `json:"step"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Step != wizard.StepBusiness {
		t.Errorf("step: got %d, want 2", resp.Step)
	}
	if resp.FieldErrors["businessEmail"] == "" {
		t.Errorf("fieldErrors: got %v", resp.FieldErrors)
	}
}

func TestSubmitAgreement(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)
	env.advanceToStep3(t, wid)

	// Not accepted yet.
	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/3", map[string]bool{"accepted": false})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unaccepted agreement: status %d", rr.Code)
	}

	rr = env.do(t, "POST", "/onboarding/"+wid.String()+"/steps/3", map[string]bool{"accepted": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body)
	}

	var resp struct {
		Step    int `json:"step"`
		Payment struct {
			AmountDue     string `json:"amountDue"`
			AmountDisplay string `json:"amountDisplay"`
		} `json:"payment"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Step != wizard.StepPayment {
		t.Errorf("step: got %d, want 4", resp.Step)
	}
	if resp.Payment.AmountDue != "50.00" {
		t.Errorf("amountDue: got %q", resp.Payment.AmountDue)
	}
	if resp.Payment.AmountDisplay != "$50.00 CAD" {
		t.Errorf("amountDisplay: got %q", resp.Payment.AmountDisplay)
	}
}

func TestBack_RetainsData(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)
	env.advanceToStep2(t, wid)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/back", map[string]int{"step": 1})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	wz, _ := env.registry.Get(wid)
	if wz.Step() != wizard.StepIdentity {
		t.Errorf("step: got %d", wz.Step())
	}
	if wz.Form().Personal.FirstName != "Jane" {
		t.Error("personal data lost on back navigation")
	}
}

func TestBack_ForwardRejected(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/back", map[string]int{"step": 3})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	wid := env.createWizard(t)
	env.advanceToStep2(t, wid)

	rr := env.do(t, "POST", "/onboarding/"+wid.String()+"/reset", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	wz, _ := env.registry.Get(wid)
	if wz.Step() != wizard.StepIdentity {
		t.Errorf("step: got %d", wz.Step())
	}
	if wz.Form().Personal.FirstName != "" {
		t.Error("form not cleared on reset")
	}
}
