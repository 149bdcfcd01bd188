package enum

// ── Payment gateways ──

const (
	GatewayStripe = "STRIPE"
	GatewayPayPal = "PAYPAL"
)

// ── Gateway return statuses (query param on the redirect back) ──

const (
	PaymentReturnSuccess   = "success"
	PaymentReturnCancelled = "cancelled"
)

// Payment context sent on payment initiation.
const PaymentContextRegistration = "REGISTRATION"

// ── Distribution centers ──

const (
	DCMississauga = "Mississauga"
	DCVancouver   = "Vancouver"
)

// Authority granted to every registered client account.
const RoleClientDTS = "ROLE_CLIENT_DTS"

// ── Registration defaults (fixed by the upstream contract) ──

const (
	DefaultDeliveryDateBuffer = 0
	DefaultEligibilityDay     = 0
	DefaultExpectedManifests  = 5
	DefaultManifestCutoffTime = "14:00:00"
)
