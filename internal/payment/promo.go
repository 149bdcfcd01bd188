package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/koorier/onboarding-api/internal/upstream"
	"github.com/koorier/onboarding-api/internal/wizard"
)

var (
	ErrPromoAlreadyApplied = errors.New("a promo code is already applied")
	ErrNoPromoApplied      = errors.New("no promo code is applied")
)

// PromoClient is the slice of the upstream API the promo flow needs.
type PromoClient interface {
	ValidatePromo(ctx context.Context, code, customerID string) (upstream.PromoResult, error)
	ApplyPromo(ctx context.Context, code, customerID string) (upstream.PromoResult, error)
	RemovePromo(ctx context.Context, code, customerID string) (upstream.PromoResult, error)
}

// ApplyPromo validates and then applies a promo code for the wizard's
// customer. The wallet balance after the credit is the server's figure; the
// amount due is recomputed from it.
func (o *Orchestrator) ApplyPromo(ctx context.Context, wz *wizard.Wizard, code string) (wizard.PaymentState, error) {
	pay := wz.Payment()
	if pay.PromoApplied {
		return pay, ErrPromoAlreadyApplied
	}

	check, err := o.promo.ValidatePromo(ctx, code, pay.CustomerID)
	if err != nil {
		return pay, fmt.Errorf("validate promo: %w", err)
	}
	if !check.Valid {
		msg := check.Message
		if msg == "" {
			msg = "Invalid promo code"
		}
		return pay, errors.New(msg)
	}

	res, err := o.promo.ApplyPromo(ctx, code, pay.CustomerID)
	if err != nil {
		return pay, fmt.Errorf("apply promo: %w", err)
	}
	if !res.Valid {
		msg := res.Message
		if msg == "" {
			msg = "Invalid promo code"
		}
		return pay, errors.New(msg)
	}

	wz.UpdatePayment(func(p *wizard.PaymentState) {
		p.PromoApplied = true
		p.PromoCode = code
		p.PromoCredit = res.Credit
		p.WalletBalance = res.BalanceAfter
		p.Recompute(o.fee)
	})
	return wz.Payment(), nil
}

// RemovePromo removes the applied promo code and restores the
// server-reported balance.
func (o *Orchestrator) RemovePromo(ctx context.Context, wz *wizard.Wizard) (wizard.PaymentState, error) {
	pay := wz.Payment()
	if !pay.PromoApplied {
		return pay, ErrNoPromoApplied
	}

	res, err := o.promo.RemovePromo(ctx, pay.PromoCode, pay.CustomerID)
	if err != nil {
		return pay, fmt.Errorf("remove promo: %w", err)
	}

	wz.UpdatePayment(func(p *wizard.PaymentState) {
		p.PromoApplied = false
		p.PromoCode = ""
		p.PromoCredit = decimal.Zero
		p.WalletBalance = res.BalanceAfter
		p.Recompute(o.fee)
	})
	return wz.Payment(), nil
}
