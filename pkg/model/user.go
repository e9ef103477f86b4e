package model

import "encoding/json"

type Role string

const (
	RoleFreelancer Role = "freelancer"
	RoleRecruiter  Role = "recruiter"
)

// Valid reports whether r is one of the roles the marketplace accepts at signup.
func (r Role) Valid() bool {
	return r == RoleFreelancer || r == RoleRecruiter
}

// User is the account record returned by /auth/login/ and /auth/me/.
type User struct {
	ID          int64  `json:"id,omitempty"`
	Email       string `json:"email"`
	FullName    string `json:"full_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        Role   `json:"role"`
	IsVerified  bool   `json:"is_verified,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful /auth/login/ call.
type LoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FullName        string `json:"full_name"`
	PhoneNumber     string `json:"phone_number"`
	Role            Role   `json:"role"`
}

// LoginCredentials is what a login secret resolves to.
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserPatch carries a partial /auth/me/ update; nil fields are omitted.
type UserPatch struct {
	FullName    *string `json:"full_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// ParseUser decodes a stored user snapshot. An empty or null snapshot yields nil.
func ParseUser(raw string) (*User, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RegisterResponse is the /auth/register/ body; the server may omit either field.
type RegisterResponse struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
}
