package entity

// UserState is where a chat user is in the counting conversation.
type UserState string

const (
	StateIdle          UserState = "idle"           // nothing pending
	StateAwaitingPhoto UserState = "awaiting_photo" // /count was sent, waiting for a photo
	StateCounting      UserState = "counting"       // a photo is being counted
)

// User is a chat participant of the telegram bot.
type User struct {
	ID        int64 // Telegram user ID
	ChatID    int64 // Telegram chat ID
	State     UserState
	Scans     int // successful counts
	LastCount int // chips found in the last successful count
}

// NewUser creates a user in the idle state.
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateIdle,
	}
}

// SetState moves the user to state.
func (u *User) SetState(state UserState) {
	u.State = state
}

// RecordScan remembers a finished count and returns the user to idle.
func (u *User) RecordScan(chips int) {
	u.Scans++
	u.LastCount = chips
	u.State = StateIdle
}
