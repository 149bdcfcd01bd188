// Package session persists the wizard's resumable state across the payment
// gateway redirect. A snapshot is written immediately before the browser
// leaves for the gateway and read back exactly once on return; snapshots
// older than the TTL are treated as absent and removed on read.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/zekroTJA/timedmap"

	"github.com/koorier/onboarding-api/internal/wizard"
)

// DefaultTTL is how long a snapshot stays resumable.
const DefaultTTL = 30 * time.Minute

// Snapshot is the externally-survivable copy of the wizard state, keyed by
// the payment reference id carried through the gateway redirect.
type Snapshot struct {
	WizardID       uuid.UUID           `json:"wizardId"`
	Form           wizard.FormData     `json:"form"`
	Payment        wizard.PaymentState `json:"payment"`
	ReferenceID    string              `json:"referenceId"`
	GatewayOrderID string              `json:"gatewayOrderId,omitempty"`
	Gateway        string              `json:"gateway"`
	SavedAt        time.Time           `json:"savedAt"`
}

// Store is the single-slot-per-reference snapshot store. Last write wins.
type Store struct {
	ttl time.Duration
	m   *timedmap.TimedMap
}

// NewStore creates a store whose snapshots expire after ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl: ttl,
		m:   timedmap.New(time.Minute),
	}
}

// Save persists a snapshot under its reference id, stamping SavedAt when the
// caller has not set it.
func (s *Store) Save(snap Snapshot) Snapshot {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	s.m.Set(snap.ReferenceID, snap, s.ttl)
	return snap
}

// Load returns the snapshot for a reference id. Absent or expired snapshots
// yield (zero, false); an expired snapshot is removed on read.
func (s *Store) Load(referenceID string) (Snapshot, bool) {
	v := s.m.GetValue(referenceID)
	if v == nil {
		return Snapshot{}, false
	}
	snap, ok := v.(Snapshot)
	if !ok {
		s.m.Remove(referenceID)
		return Snapshot{}, false
	}
	// The map expires entries from their write time; the age check also
	// covers snapshots carried across a store restart or re-save.
	if time.Since(snap.SavedAt) > s.ttl {
		s.m.Remove(referenceID)
		return Snapshot{}, false
	}
	return snap, true
}

// Clear discards the snapshot for a reference id.
func (s *Store) Clear(referenceID string) {
	s.m.Remove(referenceID)
}
