package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Fullname     string    `json:"fullname"`
	Email        string    `json:"email"`
	Password     string    `json:"password,omitempty"`
	Phone        string    `json:"phone"`
	ProfilePhoto *string   `json:"profilePhoto"`
	Rentals      int       `json:"rentals"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session returns the projection stored under currentUser. It is a full copy of
// the authoritative record minus the password.
func (u User) Session() User {
	u.Password = ""
	return u
}

type Admin struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a Admin) Session() Admin {
	a.Password = ""
	return a
}

type SignupRequest struct {
	Fullname string `json:"fullname" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"required"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// MaxPhotoBytes bounds the size of an uploaded profile photo data URL.
const MaxPhotoBytes = 5 * 1024 * 1024
