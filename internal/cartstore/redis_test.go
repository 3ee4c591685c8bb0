package cartstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestGetMissingCartIsEmpty(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)

	cart, err := s.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cart.UserID)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestSaveAndGet(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	cart := models.Cart{
		UserID: 3,
		Items: []models.CartItem{
			{ProductID: 1, Name: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
		},
	}
	require.NoError(t, s.Save(ctx, cart))

	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("19.99")))

	assert.True(t, mr.Exists("cart:3"))
	assert.Equal(t, time.Hour, mr.TTL("cart:3"))
}

func TestCartExpires(t *testing.T) {
	s, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, models.Cart{UserID: 1, Items: []models.CartItem{{ProductID: 1, Quantity: 1}}}))
	mr.FastForward(2 * time.Minute)

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestDelete(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, models.Cart{UserID: 9}))
	require.NoError(t, s.Delete(ctx, 9))
	assert.False(t, mr.Exists("cart:9"))

	// deleting a missing cart is fine
	require.NoError(t, s.Delete(ctx, 9))
}

func TestGetCorruptValue(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	require.NoError(t, mr.Set("cart:5", "{not json"))

	_, err := s.Get(context.Background(), 5)
	assert.ErrorContains(t, err, "failed to decode cart")
}

func TestGetRedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisStore(client, time.Hour)

	mock.ExpectGet("cart:4").SetErr(errors.New("connection refused"))

	_, err := s.Get(context.Background(), 4)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
