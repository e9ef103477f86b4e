// Package navigation decides which page a session flow lands on.
package navigation

import (
	"net/url"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

const (
	PageHome              = "index.html"
	PageLogin             = "login.html"
	PageFreelancerProfile = "freelancer-profile.html"
)

// AfterLogin sends freelancers to their profile editor and everyone else home.
func AfterLogin(role model.Role) string {
	if role == model.RoleFreelancer {
		return PageFreelancerProfile
	}
	return PageHome
}

// LoginView is the login page with the role pre-selected.
func LoginView(role model.Role) string {
	if role == "" {
		return PageLogin
	}
	return PageLogin + "?" + url.Values{"role": {string(role)}}.Encode()
}

func SessionExpiredView() string { return PageLogin }

func AfterLogout() string { return PageHome }

// RequireAuth returns the page to redirect to when the caller is not signed in, or "".
func RequireAuth(authenticated bool, role model.Role) string {
	if authenticated {
		return ""
	}
	return LoginView(role)
}

// RoleFromQuery pre-fills a role from ?role= (login) or ?type= (registration).
// Unknown roles are ignored.
func RoleFromQuery(q url.Values) model.Role {
	for _, key := range []string{"role", "type"} {
		if r := model.Role(q.Get(key)); r.Valid() {
			return r
		}
	}
	return ""
}
