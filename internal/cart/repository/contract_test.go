package repository

import (
	"context"
	"testing"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises behaviour every CartRepository shares.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) CartRepository) {
	t.Run("find missing cart", func(t *testing.T) {
		repo := newRepo(t)

		cart, err := repo.FindByUser(context.Background(), "nonexistent")

		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("save new cart assigns id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		cart := domain.NewCart("user123", now)
		cart.Items = append(cart.Items, domain.CartItem{ProductID: 1, Quantity: 3})

		saved, err := repo.Save(ctx, cart)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "user123", saved.UserID)
		assert.Equal(t, []domain.CartItem{{ProductID: 1, Quantity: 3}}, saved.Items)
		assert.True(t, now.Equal(saved.CreatedAt), "created %v want %v", saved.CreatedAt, now)

		found, err := repo.FindByUser(ctx, "user123")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, found.ID)
		assert.Equal(t, saved.Items, found.Items)
	})

	t.Run("save upserts on user id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		first, err := repo.Save(ctx, domain.NewCart("user123", now))
		require.NoError(t, err)

		// a second writer that never saw the first cart
		racing := domain.NewCart("user123", now.Add(time.Second))
		racing.Items = []domain.CartItem{{ProductID: 2, Quantity: 1}}
		second, err := repo.Save(ctx, racing)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, []domain.CartItem{{ProductID: 2, Quantity: 1}}, second.Items)
		assert.True(t, now.Equal(second.CreatedAt))
		assert.True(t, now.Add(time.Second).Equal(second.UpdatedAt))
	})

	t.Run("cleared cart keeps row", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		cart := domain.NewCart("user123", now)
		cart.Items = []domain.CartItem{{ProductID: 1, Quantity: 2}}
		saved, err := repo.Save(ctx, cart)
		require.NoError(t, err)

		saved.Items = nil
		cleared, err := repo.Save(ctx, saved)
		require.NoError(t, err)
		assert.NotNil(t, cleared.Items)
		assert.Empty(t, cleared.Items)

		found, err := repo.FindByUser(ctx, "user123")
		require.NoError(t, err)
		assert.Empty(t, found.Items)
	})

	t.Run("carts are isolated per user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()

		a := domain.NewCart("alice", now)
		a.Items = []domain.CartItem{{ProductID: 1, Quantity: 1}}
		_, err := repo.Save(ctx, a)
		require.NoError(t, err)
		_, err = repo.Save(ctx, domain.NewCart("bob", now))
		require.NoError(t, err)

		found, err := repo.FindByUser(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, found.Items)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo := newRepo(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := repo.FindByUser(ctx, "user123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "context")
	})
}
