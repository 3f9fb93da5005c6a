package domain

import "time"

// User is the owner of activities and updates.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}

// Location resolves the user's IANA timezone, falling back when it is empty
// or unknown.
func (u *User) Location(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if u == nil || u.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
