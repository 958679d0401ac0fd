package entity

import "time"

// User is an account that can submit requests or administer the system
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsActive     bool      `json:"is_active"`
	DateJoined   time.Time `json:"date_joined"`
}

// CanAccessAdmin reports whether the user may use the administrative surface
func (u *User) CanAccessAdmin() bool {
	return u.IsActive && (u.IsStaff || u.IsSuperuser)
}
