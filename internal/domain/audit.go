package domain

import "time"

const (
	ActionProductCreate   = "product.create"
	ActionCheckoutHandoff = "checkout.handoff"
)

// AuditEntry records one back-office or checkout action.
type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
