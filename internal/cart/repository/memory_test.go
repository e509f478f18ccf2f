package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) CartRepository {
		return NewMemoryRepository()
	})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cart := domain.NewCart("u1", time.Now())
	cart.Items = []domain.CartItem{{ProductID: 1, Quantity: 1}}
	saved, err := repo.Save(ctx, cart)
	require.NoError(t, err)

	saved.Items[0].Quantity = 50
	cart.Items[0].Quantity = 60

	found, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, found.Items[0].Quantity)
}

func TestMemoryRepository_ConcurrentSaves(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			c := domain.NewCart("u1", time.Now())
			c.Items = []domain.CartItem{{ProductID: 1, Quantity: q + 1}}
			_, err := repo.Save(ctx, c)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	found, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, found.Items, 1)
}
