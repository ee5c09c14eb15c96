package model

import (
	"encoding/json"
	"time"
)

// Product lifecycle states.  Products are never physically removed;
// deleting one flips it to ProductDeleted.
const (
	ProductActive  = "active"
	ProductDeleted = "deleted"
)

// Product represents a rentable piece of equipment in the catalog.  It
// corresponds to a row in the `products` table.
//
// Fields:
//
//	ID                – primary key identifier.
//	Name              – display name.
//	Description       – free text description.
//	SKU               – optional stock keeping unit, unique when set.
//	PricePerDay       – daily rate in the smallest currency unit.
//	Category          – free-form category label (matched case-insensitively).
//	ImageURL          – optional picture.
//	QuantityAvailable – total number of units owned.
//	Status            – ProductActive or ProductDeleted.
//	Specifications    – arbitrary JSON object (nullable).
//	Features          – arbitrary JSON list (nullable).
//	CreatedAt         – creation timestamp.
//	UpdatedAt         – last update timestamp.
type Product struct {
	ID                uint64          `json:"id"`                       // products.id
	Name              string          `json:"name"`                     // products.name
	Description       string          `json:"description"`              // products.description
	SKU               *string         `json:"sku,omitempty"`            // products.sku (nullable)
	PricePerDay       int64           `json:"pricePerDay"`              // products.price_per_day
	Category          string          `json:"category"`                 // products.category
	ImageURL          *string         `json:"imageUrl,omitempty"`       // products.image_url (nullable)
	QuantityAvailable int             `json:"quantityAvailable"`        // products.quantity_available
	Status            string          `json:"status"`                   // products.status
	Specifications    json.RawMessage `json:"specifications,omitempty"` // products.specifications (nullable JSON)
	Features          json.RawMessage `json:"features,omitempty"`       // products.features (nullable JSON)
	CreatedAt         time.Time       `json:"createdAt"`                // products.created_at
	UpdatedAt         time.Time       `json:"updatedAt"`                // products.updated_at
}

// IsActive reports whether the product can be booked at all.
func (p Product) IsActive() bool { return p.Status == ProductActive }

// Listed is the catalog-level availability flag: the product is active
// and at least one unit is owned.  Bookings are not taken into account;
// use the availability endpoint for a specific window.
func (p Product) Listed() bool { return p.IsActive() && p.QuantityAvailable > 0 }

// ProductQuery carries the catalog filters.  Nil pointers mean "no filter".
type ProductQuery struct {
	Category       string
	Search         string
	MinPrice       *int64
	MaxPrice       *int64
	Available      *bool
	IncludeDeleted bool
	Page           int
	Limit          int
}

// Pagination is returned with every paged listing.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPagination computes the page count as ceil(total/limit).
func NewPagination(total int64, page, limit int) Pagination {
	p := Pagination{Total: total, Page: page, Limit: limit}
	if limit > 0 {
		p.Pages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}
