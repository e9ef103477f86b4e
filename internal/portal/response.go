package portal

import (
	"github.com/jobmarket/marketplace-client/internal/validation"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

type SessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
	Redirect      string      `json:"redirect,omitempty"`
}

type LoginResponse struct {
	Message  string      `json:"message"`
	User     *model.User `json:"user"`
	Redirect string      `json:"redirect"`
}

type MessageResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

type RedirectResponse struct {
	Redirect string `json:"redirect"`
}

type ProfileResponse struct {
	Message string                    `json:"message"`
	Profile *model.FreelancerProfile  `json:"profile"`
	Preview validation.ProfilePreview `json:"preview"`
}
