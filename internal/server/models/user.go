package models

import "time"

// User owns every Account and Identity. A single default user is created
// lazily at boot.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// CurrentUser is the caller on whose behalf a service operation runs. It is
// always passed explicitly; nothing looks it up implicitly.
type CurrentUser struct {
	ID       string
	Username string
}

// Owns reports whether ownerID belongs to the current user.
func (c CurrentUser) Owns(ownerID string) bool {
	return c.ID != "" && c.ID == ownerID
}
