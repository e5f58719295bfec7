package customer

import (
	"time"

	"github.com/google/uuid"
)

// Event types published on the customer topic.
const (
	EventCreated = "customer.created"
	EventUpdated = "customer.updated"
	EventDeleted = "customer.deleted"
)

// Event is the payload published after a customer write commits.
type Event struct {
	Type       string    `json:"type"`
	CustomerID uuid.UUID `json:"customer_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CacheKey is the cache entry holding the customer with id.
func CacheKey(id uuid.UUID) string {
	return "customers:" + id.String()
}
