package port

import (
	"context"

	"chip-counter/internal/domain/entity"
)

// UserRepository stores telegram users and their conversation state.
type UserRepository interface {
	// Get returns the user, creating one if it does not exist yet
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save persists the user
	Save(ctx context.Context, user *entity.User) error

	// UpdateState changes the state of a known user
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error
}
