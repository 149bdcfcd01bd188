package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/koorier/onboarding-api/internal/wizard"
)

// PromoResult reports a promo validate, apply or remove call. BalanceAfter is
// the server-authoritative wallet balance; the client never computes discount
// amounts itself.
type PromoResult struct {
	Valid        bool
	Credit       decimal.Decimal
	BalanceAfter decimal.Decimal
	Message      string
}

type promoResponse struct {
	Valid        *bool      `json:"valid"`
	Success      *bool      `json:"success"`
	Credit       flexString `json:"credit"`
	Discount     flexString `json:"discount"`
	BalanceAfter flexString `json:"balanceAfter"`
	Balance      flexString `json:"balance"`
	Message      string     `json:"message"`
}

func (r promoResponse) toResult() PromoResult {
	res := PromoResult{Valid: true, Message: r.Message}
	if r.Valid != nil {
		res.Valid = *r.Valid
	} else if r.Success != nil {
		res.Valid = *r.Success
	}
	res.Credit = parseMoney(r.Credit, r.Discount)
	res.BalanceAfter = parseMoney(r.BalanceAfter, r.Balance)
	return res
}

// parseMoney takes the first parseable of the candidate fields.
func parseMoney(candidates ...flexString) decimal.Decimal {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if d, err := decimal.NewFromString(string(c)); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// ValidatePromo checks a promo code for a customer without applying it.
func (c *Client) ValidatePromo(ctx context.Context, code, customerID string) (PromoResult, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("customerId", customerID)

	var resp promoResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/promo/validate?"+q.Encode(), nil, &resp); err != nil {
		return PromoResult{}, err
	}
	return resp.toResult(), nil
}

// ApplyPromo applies a validated promo code; the response carries the new
// wallet balance.
func (c *Client) ApplyPromo(ctx context.Context, code, customerID string) (PromoResult, error) {
	body := map[string]string{"customerId": customerID, "promoCode": code}

	var resp promoResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/promo/apply", body, &resp); err != nil {
		return PromoResult{}, err
	}
	return resp.toResult(), nil
}

// RemovePromo removes an applied promo code; the response carries the
// restored wallet balance.
func (c *Client) RemovePromo(ctx context.Context, code, customerID string) (PromoResult, error) {
	q := url.Values{}
	q.Set("customerId", customerID)
	q.Set("promoCode", code)

	var resp promoResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/promo/remove?"+q.Encode(), nil, &resp); err != nil {
		return PromoResult{}, err
	}
	return resp.toResult(), nil
}

// ProcessPaymentRequest initiates the onboarding payment.
type ProcessPaymentRequest struct {
	CustomerID       string `json:"customerId"`
	Amount           string `json:"amount"`
	Context          string `json:"context"`
	ReferenceID      string `json:"referenceId"`
	PreferredGateway string `json:"preferredGateway,omitempty"`
	Currency         string `json:"currency"`
	SuccessURL       string `json:"successUrl"`
	CancelURL        string `json:"cancelUrl"`
	Description      string `json:"description"`
}

// ProcessPaymentResult is the initiation outcome. When the wallet fully
// covers the fee the gateway is not required and no checkout URL is
// returned.
type ProcessPaymentResult struct {
	Success                bool
	GatewayPaymentRequired bool
	CheckoutURL            string
	Gateway                string
	LedgerEntryID          string
	GatewayOrderID         string
	Message                string
}

type processPaymentResponse struct {
	Success                bool       `json:"success"`
	GatewayPaymentRequired *bool      `json:"gatewayPaymentRequired"`
	CheckoutURL            string     `json:"checkoutUrl"`
	Gateway                string     `json:"gateway"`
	LedgerEntryID          flexString `json:"ledgerEntryId"`
	GatewayOrderID         flexString `json:"gatewayOrderId"`
	Message                string     `json:"message"`
}

// ProcessPayment issues the single payment-process call.
func (c *Client) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (ProcessPaymentResult, error) {
	var resp processPaymentResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/payment/process", req, &resp); err != nil {
		return ProcessPaymentResult{}, err
	}
	return ProcessPaymentResult{
		Success:                resp.Success,
		GatewayPaymentRequired: resp.GatewayPaymentRequired != nil && *resp.GatewayPaymentRequired,
		CheckoutURL:            resp.CheckoutURL,
		Gateway:                resp.Gateway,
		LedgerEntryID:          string(resp.LedgerEntryID),
		GatewayOrderID:         string(resp.GatewayOrderID),
		Message:                resp.Message,
	}, nil
}

// VerificationResult is the outcome of a gateway-specific completion check.
type VerificationResult struct {
	Verified bool
	Account  wizard.AccountResponse
	Message  string
}

type verificationResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	registrationResponse
}

func (r verificationResponse) toResult() VerificationResult {
	verified := r.Success ||
		strings.EqualFold(r.Status, "paid") ||
		strings.EqualFold(r.Status, "completed")
	return VerificationResult{
		Verified: verified,
		Account:  r.toAccount(),
		Message:  r.Message,
	}
}

// VerifyStripeSession confirms a Stripe checkout session after the redirect
// back.
func (c *Client) VerifyStripeSession(ctx context.Context, sessionID string) (VerificationResult, error) {
	var resp verificationResponse
	endpoint := c.baseURL + "/v1/payment/stripe/verify-session/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return VerificationResult{}, err
	}
	return resp.toResult(), nil
}

// CapturePayPalOrder captures an approved PayPal order after the redirect
// back.
func (c *Client) CapturePayPalOrder(ctx context.Context, token, payerID string) (VerificationResult, error) {
	var resp verificationResponse
	endpoint := c.baseURL + "/v1/payment/paypal/capture/" + url.PathEscape(token)
	body := map[string]string{"payerId": payerID}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return VerificationResult{}, err
	}
	return resp.toResult(), nil
}
