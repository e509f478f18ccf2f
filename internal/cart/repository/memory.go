package repository

import (
	"context"
	"sync"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]*domain.Cart)}
}

func (r *MemoryRepository) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cart.Clone()
	if stored.Items == nil {
		stored.Items = []domain.CartItem{}
	}
	if existing, ok := r.carts[stored.UserID]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	r.carts[stored.UserID] = stored
	return stored.Clone(), nil
}
