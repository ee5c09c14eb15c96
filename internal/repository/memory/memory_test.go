package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

func date(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func seedOrder(t *testing.T, rentals *RentalRepo, productID uint64, status rental.Status, start, end time.Time, qty int) model.RentalOrder {
	t.Helper()
	o := model.RentalOrder{
		UserID: 1, StartDate: start, EndDate: end, Status: status,
		Lines: []model.RentalLine{{ProductID: productID, Quantity: qty}},
	}
	err := rentals.WithProductLock(context.Background(), productID, func(ctx context.Context, tx repository.RentalTx, _ model.Product) error {
		return tx.Insert(ctx, &o)
	})
	require.NoError(t, err)
	return o
}

func TestReservedQuantity_OnlyReservingOverlaps(t *testing.T) {
	db := New()
	products, rentals := NewProductRepo(db), NewRentalRepo(db)
	p := &model.Product{Name: "Camera", Category: "Photography", QuantityAvailable: 5, Status: model.ProductActive}
	require.NoError(t, products.Create(context.Background(), p))

	a := seedOrder(t, rentals, p.ID, rental.StatusConfirmed, date(10), date(15), 1)
	seedOrder(t, rentals, p.ID, rental.StatusActive, date(14), date(16), 2)
	seedOrder(t, rentals, p.ID, rental.StatusPending, date(10), date(20), 3)
	seedOrder(t, rentals, p.ID, rental.StatusCancelled, date(10), date(20), 3)
	seedOrder(t, rentals, p.ID, rental.StatusConfirmed, date(21), date(22), 4)

	qty, orders, err := products.ReservedQuantity(context.Background(), p.ID, rental.NewWindow(date(15), date(20)), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
	assert.Equal(t, 2, orders)

	qty, _, err = products.ReservedQuantity(context.Background(), p.ID, rental.NewWindow(date(15), date(20)), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)
}

func TestWithProductLock_RollsBackOnError(t *testing.T) {
	db := New()
	products, rentals := NewProductRepo(db), NewRentalRepo(db)
	p := &model.Product{Name: "Drill", Category: "Tools", QuantityAvailable: 1, Status: model.ProductActive}
	require.NoError(t, products.Create(context.Background(), p))

	boom := errors.New("boom")
	err := rentals.WithProductLock(context.Background(), p.ID, func(ctx context.Context, tx repository.RentalTx, _ model.Product) error {
		o := model.RentalOrder{UserID: 1, StartDate: date(1), EndDate: date(2), Status: rental.StatusConfirmed,
			Lines: []model.RentalLine{{ProductID: p.ID, Quantity: 1}}}
		require.NoError(t, tx.Insert(ctx, &o))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := rentals.Count(context.Background(), model.RentalQuery{UserID: 1})
	require.NoError(t, err)
	assert.Zero(t, n)

	err = rentals.WithProductLock(context.Background(), 999, func(context.Context, repository.RentalTx, model.Product) error { return nil })
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestUsersAndTokens(t *testing.T) {
	db := New()
	users, tokens := NewUserRepo(db), NewTokenRepo(db)
	ctx := context.Background()

	u := &model.User{Email: " Ann@Example.com", PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	require.NoError(t, users.Create(ctx, u))
	assert.Equal(t, "ann@example.com", u.Email)
	assert.ErrorIs(t, users.Create(ctx, &model.User{Email: "ANN@example.com"}), repository.ErrEmailExists)

	got, err := users.GetByEmail(ctx, "ann@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = users.GetByID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "h2", time.Now().Add(-time.Hour)))
	id, err := tokens.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	_, err = tokens.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, repository.ErrTokenInvalid)

	require.NoError(t, tokens.StoreRefresh(ctx, u.ID, "h3", time.Now().Add(time.Hour)))
	id, err = tokens.ConsumeRefresh(ctx, "h3")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	_, err = tokens.ConsumeRefresh(ctx, "h3")
	assert.ErrorIs(t, err, repository.ErrTokenInvalid)

	require.NoError(t, tokens.RevokeAllForUser(ctx, u.ID))
	_, err = tokens.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrTokenInvalid)
}
