package store

import (
	"sync"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// UserStore is a thread-safe in-memory store for users, keyed by user_id.
// It stands in for the identity service's read side.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*domain.User),
	}
}

// Create adds a user to the store.
func (s *UserStore) Create(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.UserID] = u
}

// Get retrieves a user by ID. It returns domain.ErrUserNotFound if the
// user does not exist.
func (s *UserStore) Get(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// GetUser implements the identity lookup interface consumed by the
// service layer.
func (s *UserStore) GetUser(id string) (*domain.User, error) {
	return s.Get(id)
}

// Exists returns true if a user with the given ID exists.
func (s *UserStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[id]
	return ok
}
