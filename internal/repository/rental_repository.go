package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
)

// RentalRepo stores rental orders and their lines.  All timestamps are
// stored in UTC.
type RentalRepo struct {
	db *sql.DB
}

// NewRentalRepo returns a RentalRepo bound to db.
func NewRentalRepo(db *sql.DB) *RentalRepo { return &RentalRepo{db: db} }

const orderColumns = `id, user_id, start_date, end_date, total_amount, status, notes, created_at, updated_at`

func scanOrder(row rowScanner) (model.RentalOrder, error) {
	var (
		o      model.RentalOrder
		status string
		notes  sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &o.StartDate, &o.EndDate, &o.TotalAmount, &status, &notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.RentalOrder{}, err
	}
	o.Status = rental.Status(status)
	o.Notes = stringPtr(notes)
	return o, nil
}

// WithProductLock opens a transaction, locks the product row with
// SELECT ... FOR UPDATE and runs fn.  The transaction commits only when fn
// returns nil.  Concurrent bookings of the same product queue up on the
// row lock, so the stock check inside fn sees every committed order.
func (r *RentalRepo) WithProductLock(ctx context.Context, productID uint64, fn LockedFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	p, err := getProduct(ctx, tx, productID, true)
	if err != nil {
		return err
	}
	if err := fn(ctx, &rentalTx{tx: tx, productID: productID}, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// GetByID returns an order owned by userID with its lines.
func (r *RentalRepo) GetByID(ctx context.Context, userID, id uint64) (model.RentalOrder, error) {
	return getOrder(ctx, r.db, userID, id, false)
}

func getOrder(ctx context.Context, q querier, userID, id uint64, lock bool) (model.RentalOrder, error) {
	query := "SELECT " + orderColumns + " FROM rental_orders WHERE id = ? AND user_id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RentalOrder{}, ErrRentalNotFound
	}
	if err != nil {
		return model.RentalOrder{}, err
	}
	lines, err := loadLines(ctx, q, []uint64{o.ID})
	if err != nil {
		return model.RentalOrder{}, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func rentalFilter(q model.RentalQuery) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{q.UserID}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.StartFrom != nil {
		conds = append(conds, "start_date >= ?")
		args = append(args, q.StartFrom.UTC())
	}
	if q.EndUntil != nil {
		conds = append(conds, "end_date <= ?")
		args = append(args, q.EndUntil.UTC())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of the user's orders, newest first, with lines.
func (r *RentalRepo) List(ctx context.Context, q model.RentalQuery) ([]model.RentalOrder, error) {
	where, args := rentalFilter(q)
	query := "SELECT " + orderColumns + " FROM rental_orders" + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var (
		out []model.RentalOrder
		ids []uint64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.RentalOrder{}, nil
	}

	lines, err := loadLines(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// Count returns the number of the user's orders matching q.
func (r *RentalRepo) Count(ctx context.Context, q model.RentalQuery) (int64, error) {
	where, args := rentalFilter(q)
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rental_orders"+where, args...).Scan(&n)
	return n, err
}

// loadLines fetches the lines of the given orders with a product summary,
// keyed by order id.
func loadLines(ctx context.Context, q querier, orderIDs []uint64) (map[uint64][]model.RentalLine, error) {
	query := `SELECT rl.id, rl.rental_order_id, rl.product_id, rl.quantity, rl.unit_price, rl.total_price,
       p.name, p.category, p.image_url
FROM rental_lines rl
JOIN products p ON p.id = rl.product_id
WHERE rl.rental_order_id IN (` + placeholders(len(orderIDs)) + `)
ORDER BY rl.id`
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64][]model.RentalLine, len(orderIDs))
	for rows.Next() {
		var (
			l     model.RentalLine
			s     model.ProductSummary
			image sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.RentalOrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.TotalPrice,
			&s.Name, &s.Category, &image); err != nil {
			return nil, err
		}
		s.ID = l.ProductID
		s.ImageURL = stringPtr(image)
		l.Product = &s
		out[l.RentalOrderID] = append(out[l.RentalOrderID], l)
	}
	return out, rows.Err()
}

// rentalTx implements RentalTx on a *sql.Tx that holds the product lock.
type rentalTx struct {
	tx        *sql.Tx
	productID uint64
}

func (t *rentalTx) ReservedQuantity(ctx context.Context, w rental.Window, excludeOrderID uint64) (int, int, error) {
	return reservedQuantity(ctx, t.tx, t.productID, w, excludeOrderID)
}

func (t *rentalTx) Insert(ctx context.Context, o *model.RentalOrder) error {
	const q = `INSERT INTO rental_orders (user_id, start_date, end_date, total_amount, status, notes) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, o.UserID, o.StartDate.UTC(), o.EndDate.UTC(), o.TotalAmount, string(o.Status), nullString(o.Notes))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)

	const ql = `INSERT INTO rental_lines (rental_order_id, product_id, quantity, unit_price, total_price) VALUES (?, ?, ?, ?, ?)`
	for i := range o.Lines {
		l := &o.Lines[i]
		res, err := t.tx.ExecContext(ctx, ql, o.ID, l.ProductID, l.Quantity, l.UnitPrice, l.TotalPrice)
		if err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
		lid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = uint64(lid)
		l.RentalOrderID = o.ID
	}
	return t.timestamps(ctx, o)
}

func (t *rentalTx) GetForUpdate(ctx context.Context, userID, id uint64) (model.RentalOrder, error) {
	return getOrder(ctx, t.tx, userID, id, true)
}

func (t *rentalTx) Update(ctx context.Context, o *model.RentalOrder) error {
	const q = `UPDATE rental_orders SET start_date = ?, end_date = ?, total_amount = ?, status = ?, notes = ? WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q, o.StartDate.UTC(), o.EndDate.UTC(), o.TotalAmount, string(o.Status), nullString(o.Notes), o.ID); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	const ql = `UPDATE rental_lines SET quantity = ?, total_price = ? WHERE id = ? AND rental_order_id = ?`
	for _, l := range o.Lines {
		if _, err := t.tx.ExecContext(ctx, ql, l.Quantity, l.TotalPrice, l.ID, o.ID); err != nil {
			return fmt.Errorf("update line: %w", err)
		}
	}
	return t.timestamps(ctx, o)
}

// timestamps reads back the database-managed created_at and updated_at.
func (t *rentalTx) timestamps(ctx context.Context, o *model.RentalOrder) error {
	err := t.tx.QueryRowContext(ctx, "SELECT created_at, updated_at FROM rental_orders WHERE id = ?", o.ID).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRentalNotFound
	}
	return err
}
