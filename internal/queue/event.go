// Package queue carries rental lifecycle events over RabbitMQ: the event
// payload, a publisher used by the services and a consumer that appends
// events to a log file.
package queue

// Event types.
const (
    EventRentalCreated       = "rental.created"
    EventRentalStatusChanged = "rental.status_changed"
)

// RentalEvent is published when an order is created or changes status.
// It carries enough information for downstream consumers to log, notify or
// trigger analytics without querying the primary database.
type RentalEvent struct {
    Type           string `json:"type"`
    RentalID       uint64 `json:"rental_id"`
    UserID         uint64 `json:"user_id"`
    ProductID      uint64 `json:"product_id"`
    ProductName    string `json:"product_name"`
    Quantity       int    `json:"quantity"`
    StartDate      string `json:"start_date"`
    EndDate        string `json:"end_date"`
    TotalAmount    int64  `json:"total_amount"`
    PreviousStatus string `json:"previous_status,omitempty"`
    Status         string `json:"status"`
    OccurredAt     string `json:"occurred_at"`
}
