package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/equipment-rental/internal/lib/sl"
	"github.com/iliyamo/equipment-rental/internal/metrics"
	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/queue"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// RentalService runs the order workflow: booking, editing and status changes.
type RentalService struct {
	rentals   RentalStore
	publisher EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// RentalOption configures a RentalService.
type RentalOption func(*RentalService)

// WithClock replaces time.Now.  The clock decides what "in the past" means
// for start dates.
func WithClock(now func() time.Time) RentalOption {
	return func(s *RentalService) { s.now = now }
}

// WithPublisher sets the event publisher.  Without one, events are dropped.
func WithPublisher(p EventPublisher) RentalOption {
	return func(s *RentalService) { s.publisher = p }
}

// NewRentalService wires a RentalService to its store.
func NewRentalService(rentals RentalStore, log *slog.Logger, opts ...RentalOption) *RentalService {
	s := &RentalService{rentals: rentals, publisher: NopPublisher{}, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRentalInput describes a booking request.  Quantity zero means one unit.
type CreateRentalInput struct {
	ProductID uint64
	StartDate time.Time
	EndDate   time.Time
	Quantity  int
	Notes     *string
}

// UpdateRentalInput carries a partial order update.  Nil fields are left
// unchanged.
type UpdateRentalInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Quantity  *int
	Notes     *string
	Status    *rental.Status
}

// RentalList is one page of a user's orders.
type RentalList struct {
	Rentals    []model.RentalOrder `json:"rentals"`
	Pagination model.Pagination    `json:"pagination"`
}

// Create books quantity units of a product for [StartDate, EndDate].  The
// availability check and the insert run while the product row is locked,
// so two requests for the last unit cannot both succeed.  The order starts
// out pending.
func (s *RentalService) Create(ctx context.Context, userID uint64, in CreateRentalInput) (model.RentalOrder, error) {
	const op = "service.RentalService.Create"
	qty := in.Quantity
	if qty == 0 {
		qty = rental.DefaultQuantity
	}
	if qty < 0 {
		return model.RentalOrder{}, Validation("quantity must be positive")
	}
	w := rental.NewWindow(in.StartDate, in.EndDate)

	var order model.RentalOrder
	err := s.rentals.WithProductLock(ctx, in.ProductID, func(ctx context.Context, tx repository.RentalTx, p model.Product) error {
		if p.Status == model.ProductDeleted {
			return NotFound("product not found")
		}
		if err := w.Validate(); err != nil {
			return Validation(err.Error())
		}
		if w.Start.Before(s.now()) {
			return Validation("start date cannot be in the past")
		}
		if err := checkStock(ctx, tx, p, w, qty, 0); err != nil {
			return err
		}

		total := rental.Price(p.PricePerDay, w, qty)
		order = model.RentalOrder{
			UserID:      userID,
			StartDate:   w.Start,
			EndDate:     w.End,
			TotalAmount: total,
			Status:      rental.StatusPending,
			Notes:       trimNotes(in.Notes),
			Lines: []model.RentalLine{{
				ProductID:  p.ID,
				Quantity:   qty,
				UnitPrice:  p.PricePerDay,
				TotalPrice: total,
				Product:    summary(p),
			}},
		}
		return tx.Insert(ctx, &order)
	})
	if err != nil {
		return model.RentalOrder{}, s.translate(op, err)
	}

	metrics.RentalsCreated.Inc()
	s.log.Info("rental created",
		slog.Uint64("rental_id", order.ID),
		slog.Uint64("user_id", userID),
		slog.Uint64("product_id", in.ProductID),
		slog.Int("quantity", qty),
		slog.Int64("total", order.TotalAmount),
	)
	s.publish(ctx, queue.EventRentalCreated, order, "")
	return order, nil
}

// Update edits a non-terminal order.  Changing dates or quantity re-checks
// stock, ignoring the order's own units, and recomputes the total with the
// unit price frozen at booking time.  Status changes must follow the order
// lifecycle.
func (s *RentalService) Update(ctx context.Context, userID, id uint64, in UpdateRentalInput) (model.RentalOrder, error) {
	const op = "service.RentalService.Update"
	current, err := s.rentals.GetByID(ctx, userID, id)
	if err != nil {
		return model.RentalOrder{}, s.translate(op, err)
	}
	if len(current.Lines) == 0 {
		return model.RentalOrder{}, s.translate(op, errors.New("order has no lines"))
	}

	var (
		order    model.RentalOrder
		previous rental.Status
	)
	err = s.rentals.WithProductLock(ctx, current.Lines[0].ProductID, func(ctx context.Context, tx repository.RentalTx, p model.Product) error {
		o, err := tx.GetForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		previous = o.Status
		if rental.IsTerminal(o.Status) {
			return Validation("cannot update completed or cancelled rental")
		}

		start, end := o.StartDate, o.EndDate
		if in.StartDate != nil {
			if in.StartDate.Before(s.now()) {
				return Validation("start date cannot be in the past")
			}
			start = *in.StartDate
		}
		if in.EndDate != nil {
			end = *in.EndDate
		}
		w := rental.NewWindow(start, end)
		if in.StartDate != nil || in.EndDate != nil {
			if err := w.Validate(); err != nil {
				return Validation(err.Error())
			}
		}

		line := &o.Lines[0]
		qty := line.Quantity
		if in.Quantity != nil {
			if *in.Quantity <= 0 {
				return Validation("quantity must be positive")
			}
			qty = *in.Quantity
		}

		if in.Status != nil && *in.Status != o.Status {
			if !rental.CanTransition(o.Status, *in.Status) {
				return Validationf("cannot change status from %s to %s", o.Status, *in.Status)
			}
			o.Status = *in.Status
		}

		if !w.Start.Equal(o.StartDate) || !w.End.Equal(o.EndDate) || qty != line.Quantity {
			if err := checkStock(ctx, tx, p, w, qty, o.ID); err != nil {
				return err
			}
			o.StartDate, o.EndDate = w.Start, w.End
			line.Quantity = qty
			line.TotalPrice = rental.Price(line.UnitPrice, w, qty)
			o.TotalAmount = line.TotalPrice
		}
		if in.Notes != nil {
			o.Notes = trimNotes(in.Notes)
		}
		if line.Product == nil {
			line.Product = summary(p)
		}

		if err := tx.Update(ctx, &o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return model.RentalOrder{}, s.translate(op, err)
	}

	if order.Status != previous {
		metrics.StatusTransitions.WithLabelValues(string(order.Status)).Inc()
		s.log.Info("rental status changed",
			slog.Uint64("rental_id", order.ID),
			slog.String("from", string(previous)),
			slog.String("to", string(order.Status)),
		)
		s.publish(ctx, queue.EventRentalStatusChanged, order, previous)
	}
	return order, nil
}

// Cancel moves an order to cancelled.
func (s *RentalService) Cancel(ctx context.Context, userID, id uint64) (model.RentalOrder, error) {
	return s.setStatus(ctx, userID, id, rental.StatusCancelled)
}

// Confirm moves a pending order to confirmed.  Stock is not re-checked.
func (s *RentalService) Confirm(ctx context.Context, userID, id uint64) (model.RentalOrder, error) {
	return s.setStatus(ctx, userID, id, rental.StatusConfirmed)
}

// Complete moves an active order to completed.
func (s *RentalService) Complete(ctx context.Context, userID, id uint64) (model.RentalOrder, error) {
	return s.setStatus(ctx, userID, id, rental.StatusCompleted)
}

func (s *RentalService) setStatus(ctx context.Context, userID, id uint64, st rental.Status) (model.RentalOrder, error) {
	return s.Update(ctx, userID, id, UpdateRentalInput{Status: &st})
}

// Get returns one of the user's orders.
func (s *RentalService) Get(ctx context.Context, userID, id uint64) (model.RentalOrder, error) {
	const op = "service.RentalService.Get"
	o, err := s.rentals.GetByID(ctx, userID, id)
	if err != nil {
		return model.RentalOrder{}, s.translate(op, err)
	}
	return o, nil
}

// List returns a page of the user's orders, newest first.
func (s *RentalService) List(ctx context.Context, q model.RentalQuery) (RentalList, error) {
	const op = "service.RentalService.List"
	q.Page, q.Limit = pageBounds(q.Page, q.Limit, defaultRentals)
	if q.Status != "" {
		if _, ok := rental.ParseStatus(string(q.Status)); !ok {
			return RentalList{}, Validationf("invalid status %q", q.Status)
		}
	}
	items, err := s.rentals.List(ctx, q)
	if err != nil {
		return RentalList{}, s.translate(op, err)
	}
	total, err := s.rentals.Count(ctx, q)
	if err != nil {
		return RentalList{}, s.translate(op, err)
	}
	if items == nil {
		items = []model.RentalOrder{}
	}
	return RentalList{Rentals: items, Pagination: model.NewPagination(total, q.Page, q.Limit)}, nil
}

// checkStock fails with the remaining quantity when fewer than qty units of
// p are free over w.
func checkStock(ctx context.Context, tx repository.RentalTx, p model.Product, w rental.Window, qty int, excludeOrderID uint64) error {
	reserved, _, err := tx.ReservedQuantity(ctx, w, excludeOrderID)
	if err != nil {
		return err
	}
	a := rental.Check(p.QuantityAvailable, p.IsActive(), reserved, qty)
	if a.IsAvailable {
		return nil
	}
	metrics.AvailabilityRejections.Inc()
	if !p.IsActive() {
		return Validation("product is not available for rental")
	}
	return Validationf("only %d units available for the selected period", max(a.AvailableQuantity, 0))
}

// translate maps store sentinels to client errors and wraps the rest.
func (s *RentalService) translate(op string, err error) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, repository.ErrProductNotFound):
		return NotFound("product not found")
	case errors.Is(err, repository.ErrRentalNotFound):
		return NotFound("rental not found")
	}
	s.log.Error("store failure", slog.String("op", op), sl.Err(err))
	return Internal(op, err)
}

func (s *RentalService) publish(ctx context.Context, typ string, o model.RentalOrder, previous rental.Status) {
	ev := queue.RentalEvent{
		Type:           typ,
		RentalID:       o.ID,
		UserID:         o.UserID,
		StartDate:      o.StartDate.Format(time.RFC3339),
		EndDate:        o.EndDate.Format(time.RFC3339),
		TotalAmount:    o.TotalAmount,
		PreviousStatus: string(previous),
		Status:         string(o.Status),
		OccurredAt:     s.now().UTC().Format(time.RFC3339),
	}
	if len(o.Lines) > 0 {
		ev.ProductID = o.Lines[0].ProductID
		ev.Quantity = o.Lines[0].Quantity
		if o.Lines[0].Product != nil {
			ev.ProductName = o.Lines[0].Product.Name
		}
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		metrics.EventPublishFailures.Inc()
		s.log.Warn("event publish failed", slog.String("event", typ), slog.Uint64("rental_id", o.ID), sl.Err(err))
	}
}

func summary(p model.Product) *model.ProductSummary {
	return &model.ProductSummary{ID: p.ID, Name: p.Name, Category: p.Category, ImageURL: p.ImageURL}
}

func trimNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}
