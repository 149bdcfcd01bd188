// Package wizard owns the onboarding wizard state: the current step, the
// per-field validation flags, the collected personal and business data, the
// selected service zones, and the payment sub-state. A Wizard is the explicit
// context object the handlers and the payment orchestrator operate on; all
// mutation goes through its methods, which serialize concurrent access.
package wizard

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/koorier/onboarding-api/internal/validate"
)

// Wizard steps.
const (
	StepIdentity  = 1
	StepBusiness  = 2
	StepAgreement = 3
	StepPayment   = 4
	StepSuccess   = 5
)

var (
	ErrAgreementRequired = errors.New("agreement must be accepted to continue")
	ErrUnknownDC         = errors.New("unknown distribution center")
	ErrUnknownZone       = errors.New("zone not selectable for the chosen distribution center")
	ErrNoDCSelected      = errors.New("no distribution center selected")
	ErrInvalidStep       = errors.New("invalid step")
)

// ValidationState tracks the per-field local validation flags for step 1.
type ValidationState struct {
	FirstName       bool `json:"firstName"`
	LastName        bool `json:"lastName"`
	UsernameFormat  bool `json:"usernameFormat"`
	EmailFormat     bool `json:"emailFormat"`
	Password        bool `json:"password"`
	ConfirmPassword bool `json:"confirmPassword"`
}

// CanContinue reports whether every step 1 field has passed local validation.
func (v ValidationState) CanContinue() bool {
	return v.FirstName && v.LastName && v.UsernameFormat &&
		v.EmailFormat && v.Password && v.ConfirmPassword
}

// PersonalInfo is the identity data collected on step 1. It is committed only
// after local validation and the availability check both pass.
type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	UserName  string `json:"userName"`
	Password  string `json:"password"`
}

// BusinessInfo is the business data collected on step 2.
type BusinessInfo struct {
	BusinessName    string   `json:"businessName"`
	DCName          string   `json:"dcName"`
	Email           string   `json:"email"`
	AddressOne      string   `json:"addressOne"`
	AddressTwo      string   `json:"addressTwo"`
	City            string   `json:"city"`
	Province        string   `json:"province"`
	PostalCode      string   `json:"postalCode"`
	ServiceFsaZones []string `json:"serviceFsaZones"`
}

// AccountResponse is the subset of the upstream account object the wizard
// cares about: identifiers for the success page plus echo fields.
type AccountResponse struct {
	AccountID    string `json:"accountId,omitempty"`
	CustomerID   string `json:"customerId,omitempty"`
	UserID       string `json:"userId,omitempty"`
	ID           string `json:"id,omitempty"`
	Email        string `json:"email,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
}

// DisplayAccountID picks the identifier shown on the success page, in the
// upstream's preference order.
func (r AccountResponse) DisplayAccountID() string {
	switch {
	case r.AccountID != "":
		return r.AccountID
	case r.CustomerID != "":
		return "KR-" + r.CustomerID
	case r.UserID != "":
		return "KR-USR-" + r.UserID
	case r.ID != "":
		return "KR-" + r.ID
	default:
		return "KR-SMB-" + uuid.NewString()[:5]
	}
}

// BestID returns the first non-empty account identifier, used as the
// customer id for payment initiation.
func (r AccountResponse) BestID() string {
	for _, id := range []string{r.CustomerID, r.AccountID, r.UserID, r.ID} {
		if id != "" {
			return id
		}
	}
	return ""
}

// FormData is the collected wizard data. Business stays empty until step 2
// passes; Response is set after registration and again after payment success.
type FormData struct {
	Personal PersonalInfo     `json:"personal"`
	Business BusinessInfo     `json:"business"`
	Response *AccountResponse `json:"response,omitempty"`
}

// PaymentState is the payment sub-state of the wizard. Balances and credits
// are server-reported values; the only client-side arithmetic is
// amountDue = max(0, fee - walletBalance).
type PaymentState struct {
	CustomerID            string          `json:"customerId"`
	WalletBalance         decimal.Decimal `json:"walletBalance"`
	PromoApplied          bool            `json:"promoApplied"`
	PromoCode             string          `json:"promoCode,omitempty"`
	PromoCredit           decimal.Decimal `json:"promoCredit"`
	AmountDue             decimal.Decimal `json:"amountDue"`
	SelectedMethod        string          `json:"selectedMethod,omitempty"`
	Processing            bool            `json:"processing"`
	CurrentLedgerEntryID  string          `json:"currentLedgerEntryId,omitempty"`
	CurrentGatewayOrderID string          `json:"currentGatewayOrderId,omitempty"`
}

// Recompute updates AmountDue from the fee and the wallet balance. The
// result is clamped at zero; promo credit is already folded into the wallet
// balance by the server.
func (p *PaymentState) Recompute(fee decimal.Decimal) {
	due := fee.Sub(p.WalletBalance)
	if due.IsNegative() {
		due = decimal.Zero
	}
	p.AmountDue = due
}

// Step1Input is the raw identity form submission.
type Step1Input struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	UserName        string `json:"userName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Step2Input is the raw business form submission. The distribution center
// and zones come from the wizard's zone selection, not from this input.
type Step2Input struct {
	BusinessName  string `json:"businessName"`
	BusinessEmail string `json:"businessEmail"`
	AddressOne    string `json:"addressOne"`
	AddressTwo    string `json:"addressTwo"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postalCode"`
}

// Wizard is the onboarding wizard context object.
type Wizard struct {
	mu sync.Mutex

	id         uuid.UUID
	step       int
	validation ValidationState
	form       FormData
	payment    PaymentState

	dcName        string
	selectedZones []string
	agreement     bool
}

// New creates a wizard at step 1 with empty state.
func New() *Wizard {
	return &Wizard{id: uuid.New(), step: StepIdentity}
}

// ID returns the wizard identifier.
func (w *Wizard) ID() uuid.UUID { return w.id }

// Step returns the current step, always in [1,5].
func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// UpdateField revalidates a single step 1 field (input/blur parity) and
// records the outcome in the validation state. For confirmPassword the
// password value must accompany the call.
func (w *Wizard) UpdateField(field, value, password string) validate.Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	var res validate.Result
	switch field {
	case "firstName":
		res = validate.Required(value, "First name is required")
		w.validation.FirstName = res.Valid
	case "lastName":
		res = validate.Required(value, "Last name is required")
		w.validation.LastName = res.Valid
	case "userName":
		res = validate.Username(value)
		w.validation.UsernameFormat = res.Valid
	case "email":
		res = validate.Email(value)
		w.validation.EmailFormat = res.Valid
	case "password":
		res = validate.Password(value)
		w.validation.Password = res.Valid
	case "confirmPassword":
		res = validate.ConfirmPassword(password, value)
		w.validation.ConfirmPassword = res.Valid
	default:
		res = validate.Result{Valid: false, Errors: []string{"unknown field"}}
	}
	return res
}

// CheckStep1 runs every step 1 local validation and returns the first error
// message per failing field, keyed by field name. An empty map means the
// submission may proceed to the availability check.
func (w *Wizard) CheckStep1(in Step1Input) map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	fieldErrors := make(map[string]string)
	record := func(field string, res validate.Result, flag *bool) {
		*flag = res.Valid
		if !res.Valid {
			fieldErrors[field] = res.Errors[0]
		}
	}

	record("firstName", validate.Required(in.FirstName, "First name is required"), &w.validation.FirstName)
	record("lastName", validate.Required(in.LastName, "Last name is required"), &w.validation.LastName)
	record("userName", validate.Username(in.UserName), &w.validation.UsernameFormat)
	record("email", validate.Email(in.Email), &w.validation.EmailFormat)
	record("password", validate.Password(in.Password), &w.validation.Password)
	record("confirmPassword", validate.ConfirmPassword(in.Password, in.ConfirmPassword), &w.validation.ConfirmPassword)

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// CommitPersonal stores the identity data and advances to step 2. Called only
// after CheckStep1 and the availability round-trip both pass.
func (w *Wizard) CommitPersonal(in Step1Input) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.form.Personal = PersonalInfo{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		UserName:  strings.TrimSpace(in.UserName),
		Password:  in.Password,
	}
	w.step = StepBusiness
}

// CheckStep2 validates the business form against the wizard's zone selection.
// Returns the first error per failing field; key "fsaZones" covers the zone
// requirement and "dcName" the distribution center.
func (w *Wizard) CheckStep2(in Step2Input) map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	fieldErrors := make(map[string]string)
	if strings.TrimSpace(in.BusinessName) == "" {
		fieldErrors["businessName"] = "Business name is required"
	}
	if w.dcName == "" {
		fieldErrors["dcName"] = "Please select a DC"
	}
	email := strings.TrimSpace(in.BusinessEmail)
	if email == "" || !validate.Email(email).Valid {
		fieldErrors["businessEmail"] = "Valid email is required"
	}
	if strings.TrimSpace(in.AddressOne) == "" {
		fieldErrors["addressOne"] = "Address is required"
	}
	if strings.TrimSpace(in.City) == "" {
		fieldErrors["city"] = "City is required"
	}
	if strings.TrimSpace(in.Province) == "" {
		fieldErrors["province"] = "Province is required"
	}
	if strings.TrimSpace(in.PostalCode) == "" {
		fieldErrors["postalCode"] = "Postal code is required"
	}
	if len(w.selectedZones) == 0 {
		fieldErrors["fsaZones"] = "Please select at least one service zone"
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// StageBusiness builds the business payload from the form input plus the
// wizard's DC and zone selection, without committing it. The data is
// committed by CommitRegistration once the upstream accepts it.
func (w *Wizard) StageBusiness(in Step2Input) BusinessInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	zones := make([]string, len(w.selectedZones))
	copy(zones, w.selectedZones)

	return BusinessInfo{
		BusinessName:    strings.TrimSpace(in.BusinessName),
		DCName:          w.dcName,
		Email:           strings.TrimSpace(in.BusinessEmail),
		AddressOne:      strings.TrimSpace(in.AddressOne),
		AddressTwo:      strings.TrimSpace(in.AddressTwo),
		City:            strings.TrimSpace(in.City),
		Province:        strings.TrimSpace(in.Province),
		PostalCode:      strings.TrimSpace(in.PostalCode),
		ServiceFsaZones: zones,
	}
}

// CommitRegistration stores the accepted business data and the upstream
// account response, seeds the payment customer id, and advances to step 3.
func (w *Wizard) CommitRegistration(business BusinessInfo, resp AccountResponse) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.form.Business = business
	w.form.Response = &resp
	w.payment.CustomerID = resp.BestID()
	w.step = StepAgreement
}

// SetAgreement records the agreement checkbox state.
func (w *Wizard) SetAgreement(accepted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agreement = accepted
}

// SubmitAgreement advances to the payment step when the agreement has been
// accepted.
func (w *Wizard) SubmitAgreement() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.agreement {
		return ErrAgreementRequired
	}
	w.step = StepPayment
	return nil
}

// Back navigates to a lower step. Step banners are the handlers' concern;
// state is retained.
func (w *Wizard) Back(step int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if step < StepIdentity || step >= w.step {
		return ErrInvalidStep
	}
	w.step = step
	return nil
}

// ForceStep jumps to a step directly. Used when a mapped registration error
// belongs to step 1 and when payment completion lands on step 5.
func (w *Wizard) ForceStep(step int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if step < StepIdentity || step > StepSuccess {
		return ErrInvalidStep
	}
	w.step = step
	return nil
}

// Reset returns the wizard to step 1 and clears all mutable state.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.step = StepIdentity
	w.validation = ValidationState{}
	w.form = FormData{}
	w.payment = PaymentState{}
	w.dcName = ""
	w.selectedZones = nil
	w.agreement = false
}

// ── Zone selection ──

// SelectDC chooses a distribution center, replacing the selectable zone set
// and clearing any prior selection. An empty dc clears the selection.
func (w *Wizard) SelectDC(dc string) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.selectedZones = nil
	if dc == "" {
		w.dcName = ""
		return nil, nil
	}
	zones, ok := fsaZonesByDC[dc]
	if !ok {
		w.dcName = ""
		return nil, ErrUnknownDC
	}
	w.dcName = dc
	out := make([]string, len(zones))
	copy(out, zones)
	return out, nil
}

// ToggleZone flips a zone's selection. The zone must belong to the current
// DC's catalogue. Returns whether the zone is selected after the toggle.
func (w *Wizard) ToggleZone(zone string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dcName == "" {
		return false, ErrNoDCSelected
	}
	if !lo.Contains(fsaZonesByDC[w.dcName], zone) {
		return false, ErrUnknownZone
	}
	if lo.Contains(w.selectedZones, zone) {
		w.selectedZones = lo.Without(w.selectedZones, zone)
		return false, nil
	}
	w.selectedZones = append(w.selectedZones, zone)
	return true, nil
}

// ToggleAllZones selects every zone of the current DC, or clears the
// selection when everything is already selected.
func (w *Wizard) ToggleAllZones() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dcName == "" {
		return nil, ErrNoDCSelected
	}
	all := fsaZonesByDC[w.dcName]
	if len(w.selectedZones) == len(all) {
		w.selectedZones = nil
		return nil, nil
	}
	w.selectedZones = make([]string, len(all))
	copy(w.selectedZones, all)
	out := make([]string, len(all))
	copy(out, all)
	return out, nil
}

// SelectedZones returns a copy of the current zone selection.
func (w *Wizard) SelectedZones() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.selectedZones))
	copy(out, w.selectedZones)
	return out
}

// DCName returns the currently selected distribution center.
func (w *Wizard) DCName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dcName
}

// ── Payment sub-state accessors ──

// Payment returns a copy of the payment sub-state.
func (w *Wizard) Payment() PaymentState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payment
}

// Form returns a copy of the collected form data.
func (w *Wizard) Form() FormData {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Validation returns a copy of the step 1 validation flags.
func (w *Wizard) Validation() ValidationState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validation
}

// AgreementAccepted reports the agreement checkbox state.
func (w *Wizard) AgreementAccepted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agreement
}

// BeginPayment marks the payment flow as in flight. It returns false when a
// payment is already processing; callers treat that as a no-op.
func (w *Wizard) BeginPayment() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.payment.Processing {
		return false
	}
	w.payment.Processing = true
	return true
}

// EndPayment clears the in-flight flag.
func (w *Wizard) EndPayment() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.payment.Processing = false
}

// UpdatePayment applies a mutation to the payment sub-state under the
// wizard's lock.
func (w *Wizard) UpdatePayment(fn func(*PaymentState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.payment)
}

// CompletePayment records the verified payment result and lands on the
// success step.
func (w *Wizard) CompletePayment(resp AccountResponse) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if resp != (AccountResponse{}) {
		w.form.Response = &resp
	}
	w.payment.Processing = false
	w.step = StepSuccess
}

// Restore rehydrates form and payment state from a persisted session
// snapshot and re-enters the payment step.
func (w *Wizard) Restore(form FormData, payment PaymentState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.form = form
	w.payment = payment
	w.payment.Processing = false
	w.dcName = form.Business.DCName
	w.selectedZones = lo.Uniq(form.Business.ServiceFsaZones)
	w.agreement = true
	w.step = StepPayment
}
