package repository

import (
	"context"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
)

// RentalTx is the unit of work handed out while a product row is locked.
// Every reservation-affecting mutation of that product runs through one,
// so the availability check and the write that depends on it are atomic.
type RentalTx interface {
	// ReservedQuantity sums reserving line quantities of the locked
	// product that overlap w, skipping excludeOrderID.
	ReservedQuantity(ctx context.Context, w rental.Window, excludeOrderID uint64) (qty, orders int, err error)
	// Insert stores o and its lines and fills in the generated ids.
	Insert(ctx context.Context, o *model.RentalOrder) error
	// GetForUpdate loads and locks an order owned by userID.
	GetForUpdate(ctx context.Context, userID, id uint64) (model.RentalOrder, error)
	// Update writes dates, total, status and notes of o and the quantity
	// and total of its lines.
	Update(ctx context.Context, o *model.RentalOrder) error
}

// LockedFunc runs with the product row locked.  Returning an error rolls
// the unit of work back.
type LockedFunc func(ctx context.Context, tx RentalTx, p model.Product) error
