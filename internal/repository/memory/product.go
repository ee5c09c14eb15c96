package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// ProductRepo stores products in a DB.
type ProductRepo struct{ db *DB }

func NewProductRepo(db *DB) *ProductRepo { return &ProductRepo{db: db} }

// List returns the page of products matching q, newest first.
func (r *ProductRepo) List(_ context.Context, q model.ProductQuery) ([]model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	matched := r.filter(q)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, q.Page, q.Limit), nil
}

// Count returns how many products match q, ignoring pagination.
func (r *ProductRepo) Count(_ context.Context, q model.ProductQuery) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(len(r.filter(q))), nil
}

func (r *ProductRepo) filter(q model.ProductQuery) []model.Product {
	category := strings.ToLower(q.Category)
	search := strings.ToLower(q.Search)
	out := make([]model.Product, 0, len(r.db.products))
	for _, p := range r.db.products {
		if !q.IncludeDeleted && p.Status == model.ProductDeleted {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(p.Category), category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if q.MinPrice != nil && p.PricePerDay < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && p.PricePerDay > *q.MaxPrice {
			continue
		}
		if q.Available != nil && p.Listed() != *q.Available {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetByID returns a product, deleted or not.
func (r *ProductRepo) GetByID(_ context.Context, id uint64) (model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	return p, nil
}

// Create assigns an id and timestamps and stores p.
func (r *ProductRepo) Create(_ context.Context, p *model.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.skuTaken(p.SKU, 0) {
		return repository.ErrSKUExists
	}
	r.db.productSeq++
	now := r.db.now()
	p.ID = r.db.productSeq
	p.CreatedAt, p.UpdatedAt = now, now
	r.db.products[p.ID] = *p
	return nil
}

// Update overwrites the stored product with p.
func (r *ProductRepo) Update(_ context.Context, p *model.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	old, ok := r.db.products[p.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if r.skuTaken(p.SKU, p.ID) {
		return repository.ErrSKUExists
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = r.db.now()
	r.db.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) skuTaken(sku *string, self uint64) bool {
	if sku == nil {
		return false
	}
	for id, p := range r.db.products {
		if id != self && p.SKU != nil && *p.SKU == *sku {
			return true
		}
	}
	return false
}

// Categories lists distinct categories of active products, sorted.
func (r *ProductRepo) Categories(_ context.Context) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range r.db.products {
		if !p.IsActive() {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}

// ReservedQuantity sums reserving line quantities of productID overlapping w.
func (r *ProductRepo) ReservedQuantity(_ context.Context, productID uint64, w rental.Window, excludeOrderID uint64) (int, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	qty, orders := r.db.reserved(productID, w, excludeOrderID)
	return qty, orders, nil
}

// reserved must be called with mu held.
func (db *DB) reserved(productID uint64, w rental.Window, excludeOrderID uint64) (int, int) {
	var bookings []rental.Booking
	for _, o := range db.orders {
		for _, l := range o.Lines {
			if l.ProductID != productID {
				continue
			}
			bookings = append(bookings, rental.Booking{
				OrderID:  o.ID,
				Quantity: l.Quantity,
				Window:   o.Window(),
				Status:   o.Status,
			})
		}
	}
	return rental.ReservedQuantity(bookings, w, excludeOrderID)
}

func page[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
