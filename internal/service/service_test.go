package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/queue"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository/memory"
)

var clock = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.RentalEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.RentalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db        *memory.DB
	products  *memory.ProductRepo
	catalog   *CatalogService
	rentals   *RentalService
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.New()
	products := memory.NewProductRepo(db)
	pub := &recordingPublisher{}
	catalog := NewCatalogService(products, log)
	catalog.now = func() time.Time { return clock }
	return &fixture{
		db:        db,
		products:  products,
		catalog:   catalog,
		rentals:   NewRentalService(memory.NewRentalRepo(db), log, WithClock(func() time.Time { return clock }), WithPublisher(pub)),
		publisher: pub,
	}
}

func (f *fixture) product(t *testing.T, name, category string, price int64, qty int) model.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), ProductInput{
		Name:              name,
		Description:       name + " for rent",
		Category:          category,
		PricePerDay:       price,
		QuantityAvailable: &qty,
	})
	require.NoError(t, err)
	return p
}

func requireKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "kind of %v", err)
	if msg != "" {
		assert.Equal(t, msg, Message(err))
	}
}

func TestRentalScenario_PartialAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Camera", "Photography", 100, 2)

	a, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(15), Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(500), a.TotalAmount)
	assert.Equal(t, rental.StatusPending, a.Status)
	require.Len(t, a.Lines, 1)
	assert.Equal(t, int64(100), a.Lines[0].UnitPrice)
	assert.Equal(t, a.TotalAmount, a.Lines[0].TotalPrice)

	_, err = f.rentals.Confirm(ctx, 1, a.ID)
	require.NoError(t, err)

	_, err = f.rentals.Create(ctx, 2, CreateRentalInput{ProductID: p.ID, StartDate: day(12), EndDate: day(20), Quantity: 2})
	requireKind(t, err, KindValidation, "only 1 units available for the selected period")

	b, err := f.rentals.Create(ctx, 2, CreateRentalInput{ProductID: p.ID, StartDate: day(12), EndDate: day(20), Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(800), b.TotalAmount)

	assert.Equal(t, []string{queue.EventRentalCreated, queue.EventRentalStatusChanged, queue.EventRentalCreated}, f.publisher.types())
}

func TestCreateRental_SecondConfirmedOverlapFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Drill", "Tools", 1800, 1)

	a, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(5), EndDate: day(7)})
	require.NoError(t, err)
	_, err = f.rentals.Confirm(ctx, 1, a.ID)
	require.NoError(t, err)

	// touching on the end date still overlaps: bounds are inclusive
	_, err = f.rentals.Create(ctx, 2, CreateRentalInput{ProductID: p.ID, StartDate: day(7), EndDate: day(9)})
	requireKind(t, err, KindValidation, "only 0 units available for the selected period")

	_, err = f.rentals.Create(ctx, 2, CreateRentalInput{ProductID: p.ID, StartDate: day(8), EndDate: day(9)})
	require.NoError(t, err)
}

func TestCreateRental_PendingDoesNotReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Laptop", "Electronics", 8500, 1)

	for i := 0; i < 3; i++ {
		_, err := f.rentals.Create(ctx, uint64(i+1), CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
		require.NoError(t, err)
	}
}

func TestCreateRental_ConcurrentAgainstHeldUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Projector", "Electronics", 300, 2)

	held, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(20)})
	require.NoError(t, err)
	_, err = f.rentals.Confirm(ctx, 1, held.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := f.rentals.Create(ctx, user, CreateRentalInput{ProductID: p.ID, StartDate: day(15), EndDate: day(16), Quantity: 2})
			errs <- err
		}(uint64(i + 2))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		requireKind(t, err, KindValidation, "only 1 units available for the selected period")
	}
}

func TestCreateRental_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tent", "Camping", 500, 3)

	tests := []struct {
		name string
		in   CreateRentalInput
		kind Kind
		msg  string
	}{
		{"end before start", CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(9)}, KindValidation, "end date must be after start date"},
		{"zero-day range", CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(10)}, KindValidation, "end date must be after start date"},
		{"start in the past", CreateRentalInput{ProductID: p.ID, StartDate: clock.Add(-time.Hour), EndDate: day(3)}, KindValidation, "start date cannot be in the past"},
		{"negative quantity", CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(11), Quantity: -1}, KindValidation, "quantity must be positive"},
		{"unknown product", CreateRentalInput{ProductID: 999, StartDate: day(10), EndDate: day(11)}, KindNotFound, "product not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rentals.Create(ctx, 1, tt.in)
			requireKind(t, err, tt.kind, tt.msg)
		})
	}
}

func TestCreateRental_DeletedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Kayak", "Outdoor", 900, 1)
	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))

	_, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(11)})
	requireKind(t, err, KindNotFound, "product not found")
}

func TestCreateRental_DefaultsAndPartialDay(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Ladder", "Tools", 250, 1)

	o, err := f.rentals.Create(context.Background(), 1, CreateRentalInput{
		ProductID: p.ID,
		StartDate: day(10),
		EndDate:   day(11).Add(time.Hour),
		Notes:     strPtr("  leave at reception  "),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, o.Lines[0].Quantity)
	assert.Equal(t, int64(500), o.TotalAmount, "25 hours bill as two days")
	require.NotNil(t, o.Notes)
	assert.Equal(t, "leave at reception", *o.Notes)
}

func TestUpdateRental_TerminalRejectsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Bike", "Outdoor", 400, 2)

	cancelled, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)
	_, err = f.rentals.Cancel(ctx, 1, cancelled.ID)
	require.NoError(t, err)

	completed, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)
	for _, st := range []rental.Status{rental.StatusConfirmed, rental.StatusActive} {
		_, err = f.rentals.Update(ctx, 1, completed.ID, UpdateRentalInput{Status: &st})
		require.NoError(t, err)
	}
	_, err = f.rentals.Complete(ctx, 1, completed.ID)
	require.NoError(t, err)

	end := day(14)
	qty := 2
	active := rental.StatusActive
	updates := map[string]UpdateRentalInput{
		"notes":    {Notes: strPtr("late pickup")},
		"end date": {EndDate: &end},
		"quantity": {Quantity: &qty},
		"status":   {Status: &active},
	}
	for _, id := range []uint64{cancelled.ID, completed.ID} {
		for name, in := range updates {
			t.Run(name, func(t *testing.T) {
				_, err := f.rentals.Update(ctx, 1, id, in)
				requireKind(t, err, KindValidation, "cannot update completed or cancelled rental")
			})
		}
	}
}

func TestUpdateRental_RepricesWithFrozenUnitPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Mixer", "Kitchen", 100, 1)

	o, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)
	assert.Equal(t, int64(200), o.TotalAmount)

	newPrice := int64(1000)
	_, err = f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{PricePerDay: &newPrice})
	require.NoError(t, err)

	end := day(15)
	updated, err := f.rentals.Update(ctx, 1, o.ID, UpdateRentalInput{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, int64(500), updated.TotalAmount)
	assert.Equal(t, updated.TotalAmount, updated.Lines[0].TotalPrice)
	assert.Equal(t, int64(100), updated.Lines[0].UnitPrice)

	got, err := f.rentals.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.TotalAmount)
	assert.Equal(t, got.TotalAmount, got.Lines[0].TotalPrice)
	assert.True(t, got.EndDate.Equal(end))
}

func TestUpdateRental_DateChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Speaker", "Audio", 150, 1)
	o, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)

	past := clock.Add(-time.Minute)
	_, err = f.rentals.Update(ctx, 1, o.ID, UpdateRentalInput{StartDate: &past})
	requireKind(t, err, KindValidation, "start date cannot be in the past")

	early := day(9)
	_, err = f.rentals.Update(ctx, 1, o.ID, UpdateRentalInput{EndDate: &early})
	requireKind(t, err, KindValidation, "end date must be after start date")

	zero := 0
	_, err = f.rentals.Update(ctx, 1, o.ID, UpdateRentalInput{Quantity: &zero})
	requireKind(t, err, KindValidation, "quantity must be positive")

	got, err := f.rentals.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.TotalAmount, "failed updates leave the order untouched")
}

func TestUpdateRental_ExcludesItselfFromStockCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Generator", "Tools", 700, 1)

	o, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)
	_, err = f.rentals.Confirm(ctx, 1, o.ID)
	require.NoError(t, err)

	end := day(13)
	updated, err := f.rentals.Update(ctx, 1, o.ID, UpdateRentalInput{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, int64(2100), updated.TotalAmount)

	qty := 2
	_, err = f.rentals.Update(ctx, 1, o.ID, UpdateRentalInput{Quantity: &qty})
	requireKind(t, err, KindValidation, "only 1 units available for the selected period")
}

func TestUpdateRental_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Saw", "Tools", 100, 1)
	o, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)

	_, err = f.rentals.Complete(ctx, 1, o.ID)
	requireKind(t, err, KindValidation, "cannot change status from pending to completed")

	confirmed, err := f.rentals.Confirm(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusConfirmed, confirmed.Status)

	f.publisher.err = errors.New("broker down")
	cancelled, err := f.rentals.Cancel(ctx, 1, o.ID)
	require.NoError(t, err, "publish failures never fail the request")
	assert.Equal(t, rental.StatusCancelled, cancelled.Status)
}

func TestRentals_OwnedByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Drone", "Photography", 1200, 1)
	o, err := f.rentals.Create(ctx, 1, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(12)})
	require.NoError(t, err)

	_, err = f.rentals.Get(ctx, 2, o.ID)
	requireKind(t, err, KindNotFound, "rental not found")
	_, err = f.rentals.Cancel(ctx, 2, o.ID)
	requireKind(t, err, KindNotFound, "rental not found")
}

func TestListRentals_FiltersAndPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Chair", "Events", 20, 100)

	var ids []uint64
	for i := 0; i < 12; i++ {
		o, err := f.rentals.Create(ctx, 7, CreateRentalInput{ProductID: p.ID, StartDate: day(10 + i), EndDate: day(11 + i)})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := f.rentals.Create(ctx, 8, CreateRentalInput{ProductID: p.ID, StartDate: day(10), EndDate: day(11)})
	require.NoError(t, err)
	_, err = f.rentals.Confirm(ctx, 7, ids[0])
	require.NoError(t, err)

	page1, err := f.rentals.List(ctx, model.RentalQuery{UserID: 7})
	require.NoError(t, err)
	assert.Len(t, page1.Rentals, 10)
	assert.Equal(t, model.Pagination{Total: 12, Page: 1, Limit: 10, Pages: 2}, page1.Pagination)
	assert.Equal(t, ids[11], page1.Rentals[0].ID, "newest first")
	require.NotNil(t, page1.Rentals[0].Lines[0].Product)
	assert.Equal(t, "Chair", page1.Rentals[0].Lines[0].Product.Name)

	page2, err := f.rentals.List(ctx, model.RentalQuery{UserID: 7, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page2.Rentals, 2)

	confirmed, err := f.rentals.List(ctx, model.RentalQuery{UserID: 7, Status: rental.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed.Rentals, 1)
	assert.Equal(t, ids[0], confirmed.Rentals[0].ID)

	from, until := day(15), day(18)
	window, err := f.rentals.List(ctx, model.RentalQuery{UserID: 7, StartFrom: &from, EndUntil: &until})
	require.NoError(t, err)
	assert.Equal(t, int64(3), window.Pagination.Total)

	_, err = f.rentals.List(ctx, model.RentalQuery{UserID: 7, Status: "lost"})
	requireKind(t, err, KindValidation, `invalid status "lost"`)
}

func strPtr(s string) *string { return &s }
