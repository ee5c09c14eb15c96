// Package memory provides mutex-guarded in-memory stores with the same
// contracts as the MySQL repositories.  It backs APP_STORE=memory and the
// service tests.
package memory

import (
	"sync"
	"time"

	"github.com/iliyamo/equipment-rental/internal/model"
)

// DB is the shared state behind every in-memory repository.  One mutex
// guards everything; holding it is what "locking a product" means here.
type DB struct {
	mu sync.Mutex

	products map[uint64]model.Product
	orders   map[uint64]model.RentalOrder
	users    map[uint64]model.User
	tokens   map[string]model.RefreshToken

	productSeq uint64
	orderSeq   uint64
	lineSeq    uint64
	userSeq    uint64
	tokenSeq   uint64

	now func() time.Time
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		products: make(map[uint64]model.Product),
		orders:   make(map[uint64]model.RentalOrder),
		users:    make(map[uint64]model.User),
		tokens:   make(map[string]model.RefreshToken),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (db *DB) summary(productID uint64) *model.ProductSummary {
	p, ok := db.products[productID]
	if !ok {
		return nil
	}
	return &model.ProductSummary{ID: p.ID, Name: p.Name, Category: p.Category, ImageURL: p.ImageURL}
}

// withLines returns a copy of o whose lines do not alias the stored slice
// and carry the current product summary.
func (db *DB) withLines(o model.RentalOrder) model.RentalOrder {
	lines := make([]model.RentalLine, len(o.Lines))
	copy(lines, o.Lines)
	for i := range lines {
		lines[i].Product = db.summary(lines[i].ProductID)
	}
	o.Lines = lines
	return o
}
