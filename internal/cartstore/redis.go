// Package cartstore keeps session carts in Redis as JSON values.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore saves one cart per user under cart:<userID>
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client; a ttl of zero keeps carts forever
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewClient connects to addr and checks the connection
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func key(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

// Get returns the user's cart, or an empty cart if none is stored
func (s *RedisStore) Get(ctx context.Context, userID int64) (models.Cart, error) {
	raw, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to load cart for user %d: %w", userID, err)
	}

	var cart models.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return models.Cart{}, fmt.Errorf("failed to decode cart for user %d: %w", userID, err)
	}
	cart.UserID = userID
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

// Save stores the cart and refreshes its TTL
func (s *RedisStore) Save(ctx context.Context, cart models.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart for user %d: %w", cart.UserID, err)
	}
	if err := s.client.Set(ctx, key(cart.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart for user %d: %w", cart.UserID, err)
	}
	return nil
}

// Delete removes the user's cart
func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart for user %d: %w", userID, err)
	}
	return nil
}
