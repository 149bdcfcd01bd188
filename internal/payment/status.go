package payment

import "fmt"

// Status is the payment attempt lifecycle state.
type Status string

const (
	StatusIdle            Status = "IDLE"
	StatusInitiating      Status = "INITIATING"
	StatusWalletSettled   Status = "WALLET_SETTLED"
	StatusAwaitingGateway Status = "AWAITING_GATEWAY"
	StatusReturned        Status = "RETURNED"
	StatusVerifying       Status = "VERIFYING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// AllowedTransitions is the single source of truth for lifecycle moves. A
// wallet-settled attempt completes without touching a gateway; a gateway
// attempt must come back through Returned and Verifying.
var AllowedTransitions = map[Status][]Status{
	StatusIdle:            {StatusInitiating},
	StatusInitiating:      {StatusWalletSettled, StatusAwaitingGateway, StatusFailed},
	StatusWalletSettled:   {StatusCompleted, StatusFailed},
	StatusAwaitingGateway: {StatusReturned, StatusFailed},
	StatusReturned:        {StatusVerifying, StatusFailed},
	StatusVerifying:       {StatusCompleted, StatusFailed},
	StatusCompleted:       {},
	StatusFailed:          {},
}

// CanTransitionTo reports whether moving to next is allowed from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range AllowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt can move no further.
func (s Status) IsTerminal() bool {
	return len(AllowedTransitions[s]) == 0
}

// tracker walks an attempt through the lifecycle, rejecting illegal moves.
type tracker struct {
	status Status
}

func newTracker() *tracker { return &tracker{status: StatusIdle} }

func (t *tracker) to(next Status) error {
	if !t.status.CanTransitionTo(next) {
		return fmt.Errorf("illegal payment transition %s -> %s", t.status, next)
	}
	t.status = next
	return nil
}
