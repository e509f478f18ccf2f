package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/cache"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const cacheTimeout = time.Second

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	log   *logrus.Entry
	now   func() time.Time
	sfg   singleflight.Group // Prevents cache stampede
}

// NewCartService wires the service; a nil cache disables caching.
func NewCartService(repo repository.CartRepository, c cache.CartCache, log *logrus.Entry) *CartService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CartService{
		repo:  repo,
		cache: c,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetCart reads through the cache. An absent cart is ErrCartNotFound.
// The fill is skipped when a mutation invalidated the cart while the store
// read was in flight.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		log := s.log.WithContext(ctx).WithField("user_id", userID)

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.WithError(err).Warn("cache get failed")
		}

		gen, genErr := s.cache.Generation(ctx, userID)
		if genErr != nil {
			log.WithError(genErr).Warn("cache generation read failed, skipping fill")
		}

		cart, err = s.repo.FindByUser(ctx, userID)
		if err != nil {
			return nil, err
		}

		if genErr == nil {
			s.fillCache(ctx, log, userID, cart, gen)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight hands the same pointer to every waiter
	return v.(*domain.Cart).Clone(), nil
}

func (s *CartService) fillCache(ctx context.Context, log *logrus.Entry, userID string, cart *domain.Cart, gen int64) {
	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	err := s.cache.Set(setCtx, userID, cart, gen)
	switch {
	case errors.Is(err, cache.ErrStaleFill):
		log.Debug("cart changed during read, cache not filled")
	case err != nil:
		log.WithError(err).Warn("cache set failed")
	}
}

// AddItem merges quantity into an existing line or appends a new one.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if i := cart.IndexOf(productID); i >= 0 {
		cart.Items[i].Quantity += quantity
	} else {
		cart.Items = append(cart.Items, domain.CartItem{ProductID: productID, Quantity: quantity})
	}

	return s.save(ctx, cart)
}

// UpdateItemQuantity overwrites the quantity of an existing line. A
// quantity of zero or less removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := cart.IndexOf(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	cart.Items[i].Quantity = quantity

	return s.save(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error) {
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := cart.IndexOf(productID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)

	return s.save(ctx, cart)
}

// ClearCart empties the user's cart. A user without a cart is not an
// error and nothing is written; the returned cart is nil in that case.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		s.log.WithField("user_id", userID).Info("no cart to clear")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cart.Items = []domain.CartItem{}
	return s.save(ctx, cart)
}

func (s *CartService) getOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	cart, err = s.repo.Save(ctx, domain.NewCart(userID, s.now()))
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	s.invalidateCache(userID)
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	cart.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		s.log.WithError(err).WithField("user_id", cart.UserID).Error("repo save failed")
		return nil, err
	}

	s.invalidateCache(cart.UserID)
	return saved, nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("cache invalidate failed")
	}
}
