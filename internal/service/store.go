package service

import (
	"context"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/queue"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// ProductStore is the catalog persistence used by the services.
type ProductStore interface {
	List(ctx context.Context, q model.ProductQuery) ([]model.Product, error)
	Count(ctx context.Context, q model.ProductQuery) (int64, error)
	GetByID(ctx context.Context, id uint64) (model.Product, error)
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	Categories(ctx context.Context) ([]string, error)
	ReservedQuantity(ctx context.Context, productID uint64, w rental.Window, excludeOrderID uint64) (qty, orders int, err error)
}

// RentalStore persists orders.  Mutations go through WithProductLock.
type RentalStore interface {
	WithProductLock(ctx context.Context, productID uint64, fn repository.LockedFunc) error
	GetByID(ctx context.Context, userID, id uint64) (model.RentalOrder, error)
	List(ctx context.Context, q model.RentalQuery) ([]model.RentalOrder, error)
	Count(ctx context.Context, q model.RentalQuery) (int64, error)
}

// EventPublisher hands rental events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.RentalEvent) error
}

// NopPublisher drops every event.  Used when the broker is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.RentalEvent) error { return nil }

const (
	defaultPage     = 1
	maxLimit        = 100
	defaultProducts = 20
	defaultRentals  = 10
)

// pageBounds fills in defaults and clamps the limit.
func pageBounds(page, limit, def int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
