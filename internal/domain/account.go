package domain

import "time"

// Account represents one marketplace seller account. SessionPath points at the
// storage-state artifact produced by the external interactive login flow; an
// account with an empty or missing artifact is skipped by the sync cycle.
type Account struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SessionPath string    `json:"session_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasSession returns true if the account has a session artifact configured.
func (a *Account) HasSession() bool {
	return a.SessionPath != ""
}
