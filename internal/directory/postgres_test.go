package directory

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(db), mock
}

func TestPostgresLocations(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"name", "state", "charge", "free_delivery_threshold"}).
		AddRow("Guntur", "Andhra Pradesh", 49, 500).
		AddRow("Hyderabad", "Telangana", 129, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, state, charge, free_delivery_threshold FROM delivery_locations ORDER BY position")).
		WillReturnRows(rows)

	locs, err := store.Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []delivery.Location{
		{Name: "Guntur", State: "Andhra Pradesh", Charge: 49, FreeDeliveryThreshold: delivery.IntPtr(500)},
		{Name: "Hyderabad", State: "Telangana", Charge: 129},
	}, locs)
}

func TestPostgresLocationsEmptyStaysEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT name, state").
		WillReturnRows(sqlmock.NewRows([]string{"name", "state", "charge", "free_delivery_threshold"}))

	locs, err := store.Locations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, locs)
	assert.Empty(t, locs)
}

func TestPostgresFreeDelivery(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT enabled, threshold FROM settings WHERE key = $1")).
		WithArgs(freeDeliveryKey).
		WillReturnRows(sqlmock.NewRows([]string{"enabled", "threshold"}).AddRow(false, 1500))
	fd, err := store.FreeDelivery(ctx)
	require.NoError(t, err)
	assert.Equal(t, delivery.FreeDeliverySettings{Enabled: false, Threshold: 1500}, fd)

	// No row yet means the defaults.
	mock.ExpectQuery("SELECT enabled, threshold FROM settings").
		WithArgs(freeDeliveryKey).
		WillReturnRows(sqlmock.NewRows([]string{"enabled", "threshold"}))
	fd, err = store.FreeDelivery(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultFreeDelivery, fd)

	mock.ExpectQuery("SELECT enabled, threshold FROM settings").
		WithArgs(freeDeliveryKey).
		WillReturnError(sql.ErrConnDone)
	_, err = store.FreeDelivery(ctx)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresProducts(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "category", "prices", "available_cities",
		"discount_percentage", "discount_expires_at", "best_seller", "festival"}).
		AddRow("avakaya", "Avakaya Pickle", "pickles", []byte(`[{"weight":"250g","price":19900}]`),
			"{Guntur,Vijayawada}", 10, expires, true, false).
		AddRow("ariselu", "Ariselu", "sweets", []byte(`[]`), nil, nil, nil, false, true)
	mock.ExpectQuery("SELECT id, name, category, prices, available_cities").WillReturnRows(rows)

	ps, err := store.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, []catalog.PriceOption{{Weight: "250g", Price: 19900}}, ps[0].Prices)
	assert.Equal(t, []string{"Guntur", "Vijayawada"}, ps[0].AvailableCities)
	assert.Equal(t, &catalog.Discount{Percentage: 10, ExpiresAt: expires}, ps[0].Discount)
	assert.True(t, ps[0].BestSeller)
	assert.Nil(t, ps[1].AvailableCities)
	assert.Nil(t, ps[1].Discount)
	assert.True(t, ps[1].Festival)
}

func TestPostgresUpsertLocation(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO delivery_locations").
		WithArgs("Tenali", "Andhra Pradesh", "tenali", "andhra pradesh", 79, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.UpsertLocation(ctx, delivery.Location{Name: "Tenali", State: "Andhra Pradesh", Charge: 79}))

	mock.ExpectExec("INSERT INTO delivery_locations").
		WithArgs("Guntur", "Andhra Pradesh", "guntur", "andhra pradesh", 49, 500).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.UpsertLocation(ctx, delivery.Location{
		Name: "Guntur", State: "Andhra Pradesh", Charge: 49, FreeDeliveryThreshold: delivery.IntPtr(500),
	}))

	// Invalid input never reaches the database.
	assert.ErrorIs(t, store.UpsertLocation(ctx, delivery.Location{State: "Telangana"}), ErrInvalidLocation)
}

func TestPostgresDeleteLocation(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM delivery_locations WHERE state_key = $1 AND name_key = $2")).
		WithArgs("telangana", "hyderabad").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteLocation(ctx, " Telangana", "HYDERABAD"))

	mock.ExpectExec("DELETE FROM delivery_locations").
		WithArgs("telangana", "hyderabad").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.DeleteLocation(ctx, "Telangana", "Hyderabad"), ErrNotFound)
}

func TestPostgresSetFreeDelivery(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO settings").
		WithArgs(freeDeliveryKey, true, 750).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetFreeDelivery(ctx, delivery.FreeDeliverySettings{Enabled: true, Threshold: 750}))

	assert.ErrorIs(t, store.SetFreeDelivery(ctx, delivery.FreeDeliverySettings{Threshold: -1}), ErrInvalidSettings)
}

func TestPostgresSetAvailableCities(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET available_cities = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "avakaya").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetAvailableCities(ctx, "avakaya", []string{"Guntur"}))

	// Clearing the list stores NULL.
	mock.ExpectExec("UPDATE products").
		WithArgs(nil, "avakaya").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetAvailableCities(ctx, "avakaya", nil))

	mock.ExpectExec("UPDATE products").
		WithArgs(sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.SetAvailableCities(ctx, "missing", []string{"Guntur"}), ErrNotFound)
}

func TestPostgresMigrate(t *testing.T) {
	expectSchema := func(mock sqlmock.Sqlmock, seeded bool) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS delivery_locations").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM settings WHERE key = $1)")).
			WithArgs(seededKey).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(seeded))
	}
	expectMark := func(mock sqlmock.Sqlmock) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings (key, enabled, threshold) VALUES ($1, TRUE, 0) ON CONFLICT (key) DO NOTHING")).
			WithArgs(seededKey).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	t.Run("seeds an empty table", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectSchema(mock, false)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM delivery_locations")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		for range DefaultLocations() {
			mock.ExpectExec("INSERT INTO delivery_locations").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		expectMark(mock)
		require.NoError(t, store.Migrate(context.Background()))
	})

	t.Run("leaves existing locations alone", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectSchema(mock, false)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		expectMark(mock)
		require.NoError(t, store.Migrate(context.Background()))
	})

	t.Run("does not reseed an emptied directory", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectSchema(mock, true)
		require.NoError(t, store.Migrate(context.Background()))
	})

	t.Run("unmarked when seeding fails", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("connection reset")
		expectSchema(mock, false)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO delivery_locations").WillReturnError(boom)
		assert.ErrorIs(t, store.Migrate(context.Background()), boom)
	})

	t.Run("schema failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("permission denied")
		mock.ExpectExec("CREATE TABLE").WillReturnError(boom)
		assert.ErrorIs(t, store.Migrate(context.Background()), boom)
	})
}
