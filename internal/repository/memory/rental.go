package memory

import (
	"context"
	"sort"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// RentalRepo stores rental orders and their lines in a DB.
type RentalRepo struct{ db *DB }

func NewRentalRepo(db *DB) *RentalRepo { return &RentalRepo{db: db} }

// WithProductLock runs fn while holding the DB mutex.  Writes made through
// the tx are applied only when fn returns nil.
func (r *RentalRepo) WithProductLock(ctx context.Context, productID uint64, fn repository.LockedFunc) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	tx := &rentalTx{db: r.db, productID: productID}
	if err := fn(ctx, tx, p); err != nil {
		return err
	}
	for _, o := range tx.writes {
		r.db.orders[o.ID] = o
	}
	return nil
}

// GetByID returns an order owned by userID.
func (r *RentalRepo) GetByID(_ context.Context, userID, id uint64) (model.RentalOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok || o.UserID != userID {
		return model.RentalOrder{}, repository.ErrRentalNotFound
	}
	return r.db.withLines(o), nil
}

// List returns the page of the user's orders matching q, newest first.
func (r *RentalRepo) List(_ context.Context, q model.RentalQuery) ([]model.RentalOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	matched := r.filter(q)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	out := page(matched, q.Page, q.Limit)
	for i := range out {
		out[i] = r.db.withLines(out[i])
	}
	return out, nil
}

// Count returns how many of the user's orders match q.
func (r *RentalRepo) Count(_ context.Context, q model.RentalQuery) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(len(r.filter(q))), nil
}

func (r *RentalRepo) filter(q model.RentalQuery) []model.RentalOrder {
	var out []model.RentalOrder
	for _, o := range r.db.orders {
		if o.UserID != q.UserID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.StartFrom != nil && o.StartDate.Before(*q.StartFrom) {
			continue
		}
		if q.EndUntil != nil && o.EndDate.After(*q.EndUntil) {
			continue
		}
		out = append(out, o)
	}
	return out
}

type rentalTx struct {
	db        *DB
	productID uint64
	writes    []model.RentalOrder
}

func (tx *rentalTx) ReservedQuantity(_ context.Context, w rental.Window, excludeOrderID uint64) (int, int, error) {
	qty, orders := tx.db.reserved(tx.productID, w, excludeOrderID)
	return qty, orders, nil
}

func (tx *rentalTx) Insert(_ context.Context, o *model.RentalOrder) error {
	tx.db.orderSeq++
	now := tx.db.now()
	o.ID = tx.db.orderSeq
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Lines {
		tx.db.lineSeq++
		o.Lines[i].ID = tx.db.lineSeq
		o.Lines[i].RentalOrderID = o.ID
	}
	tx.writes = append(tx.writes, stored(*o))
	return nil
}

func (tx *rentalTx) GetForUpdate(_ context.Context, userID, id uint64) (model.RentalOrder, error) {
	o, ok := tx.db.orders[id]
	if !ok || o.UserID != userID {
		return model.RentalOrder{}, repository.ErrRentalNotFound
	}
	return tx.db.withLines(o), nil
}

func (tx *rentalTx) Update(_ context.Context, o *model.RentalOrder) error {
	old, ok := tx.db.orders[o.ID]
	if !ok {
		return repository.ErrRentalNotFound
	}
	o.CreatedAt = old.CreatedAt
	o.UpdatedAt = tx.db.now()
	tx.writes = append(tx.writes, stored(*o))
	return nil
}

// stored copies o for keeping in the map; product summaries are filled in
// on read.
func stored(o model.RentalOrder) model.RentalOrder {
	lines := make([]model.RentalLine, len(o.Lines))
	copy(lines, o.Lines)
	for i := range lines {
		lines[i].Product = nil
	}
	o.Lines = lines
	return o
}
