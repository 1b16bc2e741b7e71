package storage

import (
	"context"
	"sync"

	"chip-counter/internal/domain/entity"
	"chip-counter/internal/domain/port"
)

// MemoryUserRepository keeps bot users in memory. State is lost on restart,
// which only drops an unfinished /count.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*entity.User),
	}
}

// Get returns the user, creating an idle one on first contact
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.RLock()
	user, exists := r.users[userID]
	r.mu.RUnlock()
	if exists {
		return user, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another update from the same user may have raced us here
	if user, exists = r.users[userID]; exists {
		return user, nil
	}
	user = entity.NewUser(userID, chatID)
	r.users[userID] = user
	return user, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = user
	r.mu.Unlock()
	return nil
}

// UpdateState is a no-op for unknown users
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.SetState(state)
	}
	return nil
}

// Len is the number of users seen since start.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
