package domain

import "time"

// User is the read-only slice of the account system this pipeline needs:
// who exists (in-app fan-out goes to everyone) and who opted into email.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	NotifyEmail bool      `json:"notifyEmail"`
	CreatedAt   time.Time `json:"createdAt"`
}
