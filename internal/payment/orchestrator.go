// Package payment orchestrates the onboarding fee collection: wallet
// settlement, promo adjustments, and the redirect round-trip through an
// external checkout gateway. Every attempt walks the lifecycle in status.go;
// state that must survive the redirect is snapshotted before the checkout URL
// is handed out.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/koorier/onboarding-api/internal/enum"
	"github.com/koorier/onboarding-api/internal/session"
	"github.com/koorier/onboarding-api/internal/upstream"
	"github.com/koorier/onboarding-api/internal/wizard"
)

var (
	ErrPaymentInFlight  = errors.New("a payment attempt is already processing")
	ErrMissingReference = errors.New("gateway return carries no reference id")
	ErrSessionExpired   = errors.New("onboarding session expired, please register again")
	ErrUnknownGateway   = errors.New("unknown payment gateway on return")
)

// GatewayClient is the slice of the upstream API the payment legs need.
type GatewayClient interface {
	ProcessPayment(ctx context.Context, req upstream.ProcessPaymentRequest) (upstream.ProcessPaymentResult, error)
	VerifyStripeSession(ctx context.Context, sessionID string) (upstream.VerificationResult, error)
	CapturePayPalOrder(ctx context.Context, token, payerID string) (upstream.VerificationResult, error)
}

// Client is everything the orchestrator calls upstream for. *upstream.Client
// satisfies it.
type Client interface {
	GatewayClient
	PromoClient
}

// SnapshotStore persists wizard state across the gateway redirect.
type SnapshotStore interface {
	Save(snap session.Snapshot) session.Snapshot
	Load(referenceID string) (session.Snapshot, bool)
	Clear(referenceID string)
}

// Orchestrator drives payment attempts for onboarding wizards.
type Orchestrator struct {
	client        GatewayClient
	promo         PromoClient
	sessions      SnapshotStore
	fee           decimal.Decimal
	currency      string
	returnBaseURL string
}

// NewOrchestrator wires the orchestrator. returnBaseURL is this service's own
// externally reachable base; the gateway redirects back to it.
func NewOrchestrator(client Client, sessions SnapshotStore, fee decimal.Decimal, currency, returnBaseURL string) *Orchestrator {
	return &Orchestrator{
		client:        client,
		promo:         client,
		sessions:      sessions,
		fee:           fee,
		currency:      currency,
		returnBaseURL: strings.TrimRight(returnBaseURL, "/"),
	}
}

// Fee returns the configured onboarding fee.
func (o *Orchestrator) Fee() decimal.Decimal { return o.fee }

// NewReferenceID mints the correlation id for one payment attempt. The random
// suffix keeps retries for the same customer distinct.
func NewReferenceID(customerID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "ONBOARD-" + customerID + "-" + suffix
}

// InitiateOutcome reports a payment initiation. Exactly one of Completed and
// CheckoutURL is meaningful: wallet-settled attempts complete in place,
// gateway attempts hand back a redirect target.
type InitiateOutcome struct {
	Status      Status `json:"status"`
	Completed   bool   `json:"completed"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Initiate runs one payment attempt for the wizard. Re-entrant calls while an
// attempt is processing return ErrPaymentInFlight. When the gateway is
// required, the wizard state is snapshotted before the checkout URL is
// returned, so the return leg can always rehydrate.
func (o *Orchestrator) Initiate(ctx context.Context, wz *wizard.Wizard, method string) (InitiateOutcome, error) {
	if !wz.BeginPayment() {
		return InitiateOutcome{}, ErrPaymentInFlight
	}

	tr := newTracker()
	if err := tr.to(StatusInitiating); err != nil {
		wz.EndPayment()
		return InitiateOutcome{}, err
	}

	wz.UpdatePayment(func(p *wizard.PaymentState) {
		p.SelectedMethod = method
		p.Recompute(o.fee)
	})
	pay := wz.Payment()
	referenceID := NewReferenceID(pay.CustomerID)

	res, err := o.client.ProcessPayment(ctx, upstream.ProcessPaymentRequest{
		CustomerID:       pay.CustomerID,
		Amount:           pay.AmountDue.StringFixed(2),
		Context:          enum.PaymentContextRegistration,
		ReferenceID:      referenceID,
		PreferredGateway: method,
		Currency:         o.currency,
		SuccessURL:       o.returnURL(enum.PaymentReturnSuccess, referenceID, method),
		CancelURL:        o.returnURL(enum.PaymentReturnCancelled, referenceID, method),
		Description:      "Koorier client onboarding fee",
	})
	if err != nil {
		tr.to(StatusFailed)
		wz.EndPayment()
		return InitiateOutcome{Status: tr.status}, fmt.Errorf("initiate payment: %w", err)
	}
	if !res.Success {
		tr.to(StatusFailed)
		wz.EndPayment()
		msg := res.Message
		if msg == "" {
			msg = "Payment could not be initiated. Please try again."
		}
		return InitiateOutcome{Status: tr.status, Message: msg}, nil
	}

	wz.UpdatePayment(func(p *wizard.PaymentState) {
		p.CurrentLedgerEntryID = res.LedgerEntryID
		p.CurrentGatewayOrderID = res.GatewayOrderID
	})

	if res.GatewayPaymentRequired && res.CheckoutURL != "" {
		if err := tr.to(StatusAwaitingGateway); err != nil {
			wz.EndPayment()
			return InitiateOutcome{}, err
		}
		gateway := res.Gateway
		if gateway == "" {
			gateway = method
		}
		// The synchronous leg ends once the user is handed to the gateway. An
		// abandoned checkout page must not lock the wizard out of retrying;
		// each retry gets a fresh reference id and its own snapshot.
		wz.EndPayment()
		// Snapshot before the URL leaves the building. If this process dies
		// mid-redirect, the return leg still finds the state.
		o.sessions.Save(session.Snapshot{
			WizardID:       wz.ID(),
			Form:           wz.Form(),
			Payment:        wz.Payment(),
			ReferenceID:    referenceID,
			GatewayOrderID: res.GatewayOrderID,
			Gateway:        gateway,
		})
		log.Printf("payment %s awaiting gateway %s", referenceID, gateway)
		return InitiateOutcome{
			Status:      tr.status,
			CheckoutURL: res.CheckoutURL,
			Gateway:     gateway,
			ReferenceID: referenceID,
		}, nil
	}

	// Wallet covered the full amount; nothing to resume, so no snapshot.
	if err := tr.to(StatusWalletSettled); err != nil {
		wz.EndPayment()
		return InitiateOutcome{}, err
	}
	if err := tr.to(StatusCompleted); err != nil {
		wz.EndPayment()
		return InitiateOutcome{}, err
	}
	wz.CompletePayment(wizard.AccountResponse{})
	log.Printf("payment %s settled from wallet", referenceID)
	return InitiateOutcome{Status: tr.status, Completed: true, ReferenceID: referenceID}, nil
}

func (o *Orchestrator) returnURL(status, referenceID, gateway string) string {
	q := url.Values{}
	q.Set("status", status)
	q.Set("ref", referenceID)
	q.Set("gateway", gateway)
	return o.returnBaseURL + "/onboarding/return?" + q.Encode()
}

// ReturnParams are the query parameters of the gateway redirect back.
type ReturnParams struct {
	Status      string
	ReferenceID string
	SessionID   string
	Token       string
	PayerID     string
	Gateway     string
}

// ParseReturnParams reads the redirect query. Some gateways append their own
// parameters to the ref value instead of the query string, producing a ref
// like "ONBOARD-5-abc123?session_id=cs_test_1"; the embedded part is split
// off and recovered.
func ParseReturnParams(q url.Values) ReturnParams {
	p := ReturnParams{
		Status:      q.Get("status"),
		ReferenceID: q.Get("ref"),
		SessionID:   q.Get("session_id"),
		Token:       q.Get("token"),
		PayerID:     q.Get("PayerID"),
		Gateway:     q.Get("gateway"),
	}
	if p.Status == "" {
		// Older checkout configurations named the param "payment".
		p.Status = q.Get("payment")
	}
	if p.PayerID == "" {
		p.PayerID = q.Get("payerId")
	}

	if ref, embedded, found := strings.Cut(p.ReferenceID, "?"); found {
		p.ReferenceID = ref
		if extra, err := url.ParseQuery(embedded); err == nil {
			if p.SessionID == "" {
				p.SessionID = extra.Get("session_id")
			}
			if p.Token == "" {
				p.Token = extra.Get("token")
			}
			if p.PayerID == "" {
				p.PayerID = extra.Get("PayerID")
			}
			if p.Gateway == "" {
				p.Gateway = extra.Get("gateway")
			}
			if p.Status == "" {
				p.Status = extra.Get("status")
			}
		}
	}
	return p
}

// ReturnOutcome reports the return leg of a gateway attempt. Snapshot is
// always populated when the session was found, so the caller can rehydrate
// the wizard regardless of the verification verdict.
type ReturnOutcome struct {
	Status    Status
	Snapshot  session.Snapshot
	Cancelled bool
	Verified  bool
	Account   wizard.AccountResponse
	Message   string
}

// HandleReturn resumes a gateway attempt from its redirect back. The
// reference id locates the snapshot saved at initiation; an expired or
// missing snapshot is terminal for the attempt.
func (o *Orchestrator) HandleReturn(ctx context.Context, q url.Values) (ReturnOutcome, error) {
	params := ParseReturnParams(q)
	if params.ReferenceID == "" {
		return ReturnOutcome{}, ErrMissingReference
	}

	snap, ok := o.sessions.Load(params.ReferenceID)
	if !ok {
		return ReturnOutcome{}, ErrSessionExpired
	}

	tr := &tracker{status: StatusAwaitingGateway}
	if err := tr.to(StatusReturned); err != nil {
		return ReturnOutcome{}, err
	}

	if params.Status == enum.PaymentReturnCancelled {
		tr.to(StatusFailed)
		o.sessions.Clear(params.ReferenceID)
		log.Printf("payment %s cancelled at gateway", params.ReferenceID)
		return ReturnOutcome{Status: tr.status, Snapshot: snap, Cancelled: true}, nil
	}

	if err := tr.to(StatusVerifying); err != nil {
		return ReturnOutcome{}, err
	}

	verification, err := o.verify(ctx, params, snap)
	if err != nil {
		tr.to(StatusFailed)
		return ReturnOutcome{Status: tr.status, Snapshot: snap}, fmt.Errorf("verify payment %s: %w", params.ReferenceID, err)
	}
	if !verification.Verified {
		tr.to(StatusFailed)
		msg := verification.Message
		if msg == "" {
			msg = "Payment could not be verified. Please try again."
		}
		log.Printf("payment %s failed verification", params.ReferenceID)
		return ReturnOutcome{Status: tr.status, Snapshot: snap, Message: msg}, nil
	}

	if err := tr.to(StatusCompleted); err != nil {
		return ReturnOutcome{}, err
	}
	o.sessions.Clear(params.ReferenceID)
	log.Printf("payment %s completed", params.ReferenceID)
	return ReturnOutcome{
		Status:   tr.status,
		Snapshot: snap,
		Verified: true,
		Account:  verification.Account,
		Message:  verification.Message,
	}, nil
}

// verify dispatches to the gateway-specific completion check. The gateway
// comes from the return params when present, otherwise from the snapshot.
func (o *Orchestrator) verify(ctx context.Context, params ReturnParams, snap session.Snapshot) (upstream.VerificationResult, error) {
	gateway := params.Gateway
	if gateway == "" {
		gateway = snap.Gateway
	}

	switch strings.ToUpper(gateway) {
	case enum.GatewayStripe:
		sessionID := params.SessionID
		if sessionID == "" {
			sessionID = snap.GatewayOrderID
		}
		return o.client.VerifyStripeSession(ctx, sessionID)
	case enum.GatewayPayPal:
		token := params.Token
		if token == "" {
			token = snap.GatewayOrderID
		}
		return o.client.CapturePayPalOrder(ctx, token, params.PayerID)
	default:
		return upstream.VerificationResult{}, ErrUnknownGateway
	}
}
