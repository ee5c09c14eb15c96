package model

import (
	"time"

	"github.com/iliyamo/equipment-rental/internal/rental"
)

// RentalOrder records a user's booking of equipment for a date range.
// Only single-line orders are created, but the schema allows several
// lines per order.
//
// Fields:
//
//	ID          – primary key identifier.
//	UserID      – user who placed the order.
//	StartDate   – first instant of the rental (inclusive).
//	EndDate     – last instant of the rental (inclusive), after StartDate.
//	TotalAmount – sum of line totals in the smallest currency unit.
//	Status      – pending, confirmed, active, completed or cancelled.
//	Notes       – optional free text from the customer.
//	Lines       – rental lines, loaded by the repository.
type RentalOrder struct {
	ID          uint64        `json:"id"`          // rental_orders.id
	UserID      uint64        `json:"userId"`      // rental_orders.user_id
	StartDate   time.Time     `json:"startDate"`   // rental_orders.start_date
	EndDate     time.Time     `json:"endDate"`     // rental_orders.end_date
	TotalAmount int64         `json:"totalAmount"` // rental_orders.total_amount
	Status      rental.Status `json:"status"`      // rental_orders.status
	Notes       *string       `json:"notes"`       // rental_orders.notes (nullable)
	CreatedAt   time.Time     `json:"createdAt"`   // rental_orders.created_at
	UpdatedAt   time.Time     `json:"updatedAt"`   // rental_orders.updated_at
	Lines       []RentalLine  `json:"rentalLines"`
}

// Window returns the order's rental interval.
func (o RentalOrder) Window() rental.Window {
	return rental.NewWindow(o.StartDate, o.EndDate)
}

// RentalLine links an order to a product.  UnitPrice is the product's
// daily rate frozen at booking time; later price changes do not affect
// existing orders.
type RentalLine struct {
	ID            uint64          `json:"id"`            // rental_lines.id
	RentalOrderID uint64          `json:"rentalOrderId"` // rental_lines.rental_order_id
	ProductID     uint64          `json:"productId"`     // rental_lines.product_id
	Quantity      int             `json:"quantity"`      // rental_lines.quantity
	UnitPrice     int64           `json:"unitPrice"`     // rental_lines.unit_price
	TotalPrice    int64           `json:"totalPrice"`    // rental_lines.total_price
	Product       *ProductSummary `json:"product,omitempty"`
}

// ProductSummary is the subset of a product embedded in order responses.
type ProductSummary struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// RentalQuery filters a user's orders.
type RentalQuery struct {
	UserID    uint64
	Status    rental.Status
	StartFrom *time.Time // start_date >= StartFrom
	EndUntil  *time.Time // end_date <= EndUntil
	Page      int
	Limit     int
}
