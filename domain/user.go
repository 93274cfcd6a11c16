package domain

import "time"

// User represents a marketplace participant. Balance is a signed amount in
// the smallest currency unit and is mutated only through ledger transfers;
// it may go negative (posters are extended credit rather than blocked).
type User struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	NotifyURL string    `json:"notify_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) CanNotify() bool {
	return u != nil && u.NotifyURL != ""
}
