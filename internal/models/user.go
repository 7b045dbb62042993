package models

import "time"

// UserType mirrors the role split the client app knows about.
type UserType string

const (
	UserTypeAdmin UserType = "admin"
	UserTypeUser  UserType = "user"
)

// User is an application user (staff member of the firm).
type User struct {
	Base         `bson:",inline"`
	Name         string   `bson:"name" json:"name"`
	Email        string   `bson:"email" json:"email"`
	Contact      string   `bson:"contact" json:"contact"`
	UserType     UserType `bson:"user_type" json:"userType"`
	PasswordHash string   `bson:"password_hash" json:"-"`

	// Forgot-password flow: a short-lived code emailed to the user.
	ResetCodeHash    string     `bson:"reset_code_hash,omitempty" json:"-"`
	ResetCodeExpires *time.Time `bson:"reset_code_expires,omitempty" json:"-"`

	Active  bool `bson:"active" json:"active"`
	Deleted bool `bson:"deleted" json:"-"`
	Audit   `bson:",inline"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}
