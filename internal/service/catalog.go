package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/equipment-rental/internal/lib/sl"
	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// CatalogService answers product listing, detail and availability queries
// and carries the admin product mutations.
type CatalogService struct {
	products ProductStore
	log      *slog.Logger
	now      func() time.Time
	group    singleflight.Group
}

// NewCatalogService wires a CatalogService to its store.
func NewCatalogService(products ProductStore, log *slog.Logger) *CatalogService {
	return &CatalogService{products: products, log: log, now: time.Now}
}

// ProductItem is a listed product with its catalog-level availability flag.
type ProductItem struct {
	model.Product
	Available bool `json:"available"`
}

// ProductList is one page of the catalog.
type ProductList struct {
	Products   []ProductItem    `json:"products"`
	Pagination model.Pagination `json:"pagination"`
}

// ProductDetail adds the units free right now to a product.
type ProductDetail struct {
	model.Product
	Available         bool `json:"available"`
	AvailableQuantity int  `json:"availableQuantity"`
	ActiveRentals     int  `json:"activeRentals"`
}

// List returns a filtered page of products.  The page and the total count
// are fetched concurrently.
func (s *CatalogService) List(ctx context.Context, q model.ProductQuery) (ProductList, error) {
	const op = "service.CatalogService.List"
	q.Page, q.Limit = pageBounds(q.Page, q.Limit, defaultProducts)
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return ProductList{}, Validation("minPrice must not exceed maxPrice")
	}

	var (
		items []model.Product
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.products.List(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.products.Count(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProductList{}, s.internal(op, err)
	}

	out := ProductList{
		Products:   make([]ProductItem, 0, len(items)),
		Pagination: model.NewPagination(total, q.Page, q.Limit),
	}
	for _, p := range items {
		out.Products = append(out.Products, ProductItem{Product: p, Available: p.Listed()})
	}
	return out, nil
}

// AdminList is List including soft-deleted products.
func (s *CatalogService) AdminList(ctx context.Context, q model.ProductQuery) (ProductList, error) {
	q.IncludeDeleted = true
	return s.List(ctx, q)
}

// Get returns a product with the number of units not held by confirmed or
// active orders at this moment.
func (s *CatalogService) Get(ctx context.Context, id uint64) (ProductDetail, error) {
	const op = "service.CatalogService.Get"
	p, err := s.visible(ctx, op, id)
	if err != nil {
		return ProductDetail{}, err
	}
	reserved, orders, err := s.products.ReservedQuantity(ctx, id, rental.At(s.now()), 0)
	if err != nil {
		return ProductDetail{}, s.internal(op, err)
	}
	a := rental.Check(p.QuantityAvailable, p.IsActive(), reserved, rental.DefaultQuantity)
	return ProductDetail{
		Product:           p,
		Available:         a.IsAvailable,
		AvailableQuantity: a.AvailableQuantity,
		ActiveRentals:     orders,
	}, nil
}

// Availability reports how many units are free for the whole of [start, end].
// A quantity of zero means one unit.
func (s *CatalogService) Availability(ctx context.Context, id uint64, start, end time.Time, quantity int) (rental.Availability, error) {
	const op = "service.CatalogService.Availability"
	if quantity < 0 {
		return rental.Availability{}, Validation("quantity must be positive")
	}
	w := rental.NewWindow(start, end)
	if err := w.Validate(); err != nil {
		return rental.Availability{}, Validation(err.Error())
	}
	p, err := s.visible(ctx, op, id)
	if err != nil {
		return rental.Availability{}, err
	}
	reserved, orders, err := s.products.ReservedQuantity(ctx, id, w, 0)
	if err != nil {
		return rental.Availability{}, s.internal(op, err)
	}
	a := rental.Check(p.QuantityAvailable, p.IsActive(), reserved, quantity)
	a.OverlappingRentals = orders
	return a, nil
}

// Categories lists the distinct categories of active products.  Concurrent
// callers share one store query.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	const op = "service.CatalogService.Categories"
	v, err, _ := s.group.Do("categories", func() (any, error) {
		return s.products.Categories(ctx)
	})
	if err != nil {
		return nil, s.internal(op, err)
	}
	cats := v.([]string)
	out := make([]string, len(cats))
	copy(out, cats)
	return out, nil
}

// ProductInput is the admin payload for creating a product.
type ProductInput struct {
	Name              string          `json:"name" validate:"required,max=255"`
	Description       string          `json:"description"`
	SKU               *string         `json:"sku" validate:"omitempty,max=64"`
	PricePerDay       int64           `json:"pricePerDay" validate:"gte=0"`
	Category          string          `json:"category" validate:"required,max=100"`
	ImageURL          *string         `json:"imageUrl" validate:"omitempty,url"`
	QuantityAvailable *int            `json:"quantityAvailable" validate:"omitempty,gte=0"`
	Specifications    json.RawMessage `json:"specifications"`
	Features          json.RawMessage `json:"features"`
}

// ProductPatch is the admin payload for a partial update.  Nil fields are
// left unchanged.
type ProductPatch struct {
	Name              *string         `json:"name" validate:"omitempty,min=1,max=255"`
	Description       *string         `json:"description"`
	SKU               *string         `json:"sku" validate:"omitempty,max=64"`
	PricePerDay       *int64          `json:"pricePerDay" validate:"omitempty,gte=0"`
	Category          *string         `json:"category" validate:"omitempty,min=1,max=100"`
	ImageURL          *string         `json:"imageUrl" validate:"omitempty,url"`
	QuantityAvailable *int            `json:"quantityAvailable" validate:"omitempty,gte=0"`
	Status            *string         `json:"status" validate:"omitempty,oneof=active deleted"`
	Specifications    json.RawMessage `json:"specifications"`
	Features          json.RawMessage `json:"features"`
}

// CreateProduct adds an active product.  Quantity defaults to one unit.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (model.Product, error) {
	const op = "service.CatalogService.CreateProduct"
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	switch {
	case name == "":
		return model.Product{}, Validation("name is required")
	case category == "":
		return model.Product{}, Validation("category is required")
	case in.PricePerDay < 0:
		return model.Product{}, Validation("pricePerDay must not be negative")
	case in.QuantityAvailable != nil && *in.QuantityAvailable < 0:
		return model.Product{}, Validation("quantityAvailable must not be negative")
	}
	if err := validJSON(in.Specifications, in.Features); err != nil {
		return model.Product{}, err
	}
	qty := 1
	if in.QuantityAvailable != nil {
		qty = *in.QuantityAvailable
	}
	p := model.Product{
		Name:              name,
		Description:       in.Description,
		SKU:               blankToNil(in.SKU),
		PricePerDay:       in.PricePerDay,
		Category:          category,
		ImageURL:          blankToNil(in.ImageURL),
		QuantityAvailable: qty,
		Status:            model.ProductActive,
		Specifications:    in.Specifications,
		Features:          in.Features,
	}
	if err := s.products.Create(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrSKUExists) {
			return model.Product{}, Conflict("sku already exists")
		}
		return model.Product{}, s.internal(op, err)
	}
	s.log.Info("product created", slog.Uint64("product_id", p.ID), slog.String("name", p.Name))
	return p, nil
}

// UpdateProduct applies a partial update.  Deleted products can be restored
// by setting status back to active.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint64, in ProductPatch) (model.Product, error) {
	const op = "service.CatalogService.UpdateProduct"
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, s.notFoundOr(op, err)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Product{}, Validation("name must not be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.SKU != nil {
		p.SKU = blankToNil(in.SKU)
	}
	if in.PricePerDay != nil {
		if *in.PricePerDay < 0 {
			return model.Product{}, Validation("pricePerDay must not be negative")
		}
		p.PricePerDay = *in.PricePerDay
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category == "" {
			return model.Product{}, Validation("category must not be empty")
		}
		p.Category = category
	}
	if in.ImageURL != nil {
		p.ImageURL = blankToNil(in.ImageURL)
	}
	if in.QuantityAvailable != nil {
		if *in.QuantityAvailable < 0 {
			return model.Product{}, Validation("quantityAvailable must not be negative")
		}
		p.QuantityAvailable = *in.QuantityAvailable
	}
	if in.Status != nil {
		if *in.Status != model.ProductActive && *in.Status != model.ProductDeleted {
			return model.Product{}, Validationf("invalid product status %q", *in.Status)
		}
		p.Status = *in.Status
	}
	if err := validJSON(in.Specifications, in.Features); err != nil {
		return model.Product{}, err
	}
	if in.Specifications != nil {
		p.Specifications = in.Specifications
	}
	if in.Features != nil {
		p.Features = in.Features
	}
	if err := s.products.Update(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrSKUExists) {
			return model.Product{}, Conflict("sku already exists")
		}
		return model.Product{}, s.notFoundOr(op, err)
	}
	return p, nil
}

// DeleteProduct soft-deletes a product.  Existing orders keep referencing it.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint64) error {
	const op = "service.CatalogService.DeleteProduct"
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return s.notFoundOr(op, err)
	}
	if !p.IsActive() {
		return nil
	}
	p.Status = model.ProductDeleted
	if err := s.products.Update(ctx, &p); err != nil {
		return s.notFoundOr(op, err)
	}
	s.log.Info("product deleted", slog.Uint64("product_id", id))
	return nil
}

// visible loads a product that has not been soft-deleted.
func (s *CatalogService) visible(ctx context.Context, op string, id uint64) (model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, s.notFoundOr(op, err)
	}
	if p.Status == model.ProductDeleted {
		return model.Product{}, NotFound("product not found")
	}
	return p, nil
}

func (s *CatalogService) notFoundOr(op string, err error) error {
	if errors.Is(err, repository.ErrProductNotFound) {
		return NotFound("product not found")
	}
	return s.internal(op, err)
}

func (s *CatalogService) internal(op string, err error) error {
	s.log.Error("store failure", slog.String("op", op), sl.Err(err))
	return Internal(op, err)
}

func validJSON(specs, features json.RawMessage) error {
	if len(specs) > 0 && !json.Valid(specs) {
		return Validation("specifications must be valid JSON")
	}
	if len(features) > 0 && !json.Valid(features) {
		return Validation("features must be valid JSON")
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
