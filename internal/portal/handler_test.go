package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/api"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// ─── Mock service ─────────────────────────────────────────────────────────────

type mockService struct {
	authenticated bool
	user          *model.User

	loginFn    func(email, password string) (*model.LoginResponse, error)
	registerFn func(in model.RegisterRequest) (*model.RegisterResponse, error)
	profileFn  func(p model.FreelancerProfile) (*model.FreelancerProfile, error)
	uploadFn   func(id int64, filename string, data []byte) (*model.ProfilePicture, error)
	logoutErr  error
	trackErr   error

	logouts int
	tracked []string
	meta    []map[string]any
}

func (m *mockService) Login(_ context.Context, email, password string) (*model.LoginResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) Logout(context.Context) error {
	m.logouts++
	m.authenticated = false
	return m.logoutErr
}

func (m *mockService) Register(_ context.Context, in model.RegisterRequest) (*model.RegisterResponse, error) {
	if m.registerFn != nil {
		return m.registerFn(in)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) IsAuthenticated() bool { return m.authenticated }

func (m *mockService) User(context.Context) (*model.User, error) { return m.user, nil }

func (m *mockService) CreateFreelancerProfile(_ context.Context, p model.FreelancerProfile) (*model.FreelancerProfile, error) {
	if m.profileFn != nil {
		return m.profileFn(p)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) UploadProfilePicture(_ context.Context, id int64, filename string, r io.Reader) (*model.ProfilePicture, error) {
	data, _ := io.ReadAll(r)
	if m.uploadFn != nil {
		return m.uploadFn(id, filename, data)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) TrackEvent(_ context.Context, eventType string, metadata map[string]any) error {
	m.tracked = append(m.tracked, eventType)
	m.meta = append(m.meta, metadata)
	return m.trackErr
}

// ─── Test app helpers ─────────────────────────────────────────────────────────

func newTestApp(svc SessionService) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, NewHandler(zap.NewNop(), svc), nil)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func loginAs(role model.Role) func(string, string) (*model.LoginResponse, error) {
	return func(string, string) (*model.LoginResponse, error) {
		return &model.LoginResponse{Access: "A", Refresh: "R", User: &model.User{ID: 1, Role: role}}, nil
	}
}

// ─── Login ────────────────────────────────────────────────────────────────────

func TestLogin_FreelancerRedirectsToProfile(t *testing.T) {
	svc := &mockService{loginFn: loginAs(model.RoleFreelancer)}
	app := newTestApp(svc)

	code, body := postJSON(t, app, "/session/login", `{"email":"a@b.com","password":"secret","role":"freelancer"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "freelancer-profile.html", body["redirect"])
	assert.Equal(t, "Login successful! Redirecting...", body["message"])
	assert.Equal(t, []string{"login"}, svc.tracked)
	assert.Equal(t, model.RoleFreelancer, svc.meta[0]["role"])
	assert.Zero(t, svc.logouts)
}

func TestLogin_RecruiterRedirectsHome(t *testing.T) {
	svc := &mockService{loginFn: loginAs(model.RoleRecruiter)}
	code, body := postJSON(t, newTestApp(svc), "/session/login", `{"email":"a@b.com","password":"secret","role":"recruiter"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "index.html", body["redirect"])
}

func TestLogin_RoleMismatchLogsOut(t *testing.T) {
	svc := &mockService{loginFn: loginAs(model.RoleRecruiter)}
	code, body := postJSON(t, newTestApp(svc), "/session/login", `{"email":"a@b.com","password":"secret","role":"freelancer"}`)

	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "This account is registered as a recruiter, not a freelancer.", body["error"])
	assert.Equal(t, 1, svc.logouts)
	assert.Empty(t, svc.tracked)
}

func TestLogin_TrackFailureDoesNotFailLogin(t *testing.T) {
	svc := &mockService{loginFn: loginAs(model.RoleFreelancer), trackErr: errors.New("analytics down")}
	code, _ := postJSON(t, newTestApp(svc), "/session/login", `{"email":"a@b.com","password":"secret","role":"freelancer"}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestLogin_ValidationErrors(t *testing.T) {
	svc := &mockService{}
	code, body := postJSON(t, newTestApp(svc), "/session/login", `{"email":"bad","password":""}`)

	assert.Equal(t, http.StatusBadRequest, code)
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "Please enter a valid email address", fields["email"])
	assert.Equal(t, "Password is required", fields["password"])
	assert.Equal(t, "Please select your role", fields["role"])
}

func TestLogin_UpstreamMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"server message", &api.RequestFailedError{Status: 401, Message: "No active account found with the given credentials"}, 401, "No active account found with the given credentials"},
		{"generic fallback", &api.RequestFailedError{Status: 400, Message: api.GenericFailureMessage}, 400, "Invalid credentials. Please try again."},
		{"server error", &api.RequestFailedError{Status: 503, Message: "maintenance"}, 502, "maintenance"},
		{"transport", &api.TransportError{Method: "POST", Endpoint: "/auth/login/", Err: errors.New("refused")}, 502, "marketplace API unreachable"},
		{"parse", &api.ParseError{Status: 200, Err: errors.New("bad")}, 502, "unexpected response from marketplace API"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{loginFn: func(string, string) (*model.LoginResponse, error) { return nil, tc.err }}
			code, body := postJSON(t, newTestApp(svc), "/session/login", `{"email":"a@b.com","password":"secret","role":"freelancer"}`)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
}

// ─── Session / logout ─────────────────────────────────────────────────────────

func TestSession(t *testing.T) {
	svc := &mockService{}
	req := httptest.NewRequest(http.MethodGet, "/session?role=recruiter", nil)
	code, body := do(t, newTestApp(svc), req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, "login.html?role=recruiter", body["redirect"])

	svc = &mockService{authenticated: true, user: &model.User{ID: 2, Role: model.RoleFreelancer}}
	code, body = do(t, newTestApp(svc), httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])
	assert.Nil(t, body["redirect"])
	assert.Equal(t, "freelancer", body["user"].(map[string]any)["role"])
}

func TestSession_RoleFromQuery(t *testing.T) {
	cases := []struct {
		query    string
		redirect string
	}{
		{"?type=recruiter", "login.html?role=recruiter"},
		{"?role=freelancer&type=recruiter", "login.html?role=freelancer"},
		{"?role=admin", "login.html"},
		{"", "login.html"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			code, body := do(t, newTestApp(&mockService{}), httptest.NewRequest(http.MethodGet, "/session"+tc.query, nil))
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tc.redirect, body["redirect"])
		})
	}
}

func TestLogout(t *testing.T) {
	svc := &mockService{authenticated: true}
	code, body := postJSON(t, newTestApp(svc), "/session/logout", ``)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "index.html", body["redirect"])
	assert.Equal(t, 1, svc.logouts)

	svc = &mockService{logoutErr: errors.New("redis down")}
	code, _ = postJSON(t, newTestApp(svc), "/session/logout", ``)
	assert.Equal(t, http.StatusInternalServerError, code)
}

// ─── Register ─────────────────────────────────────────────────────────────────

func TestRegister_Recruiter(t *testing.T) {
	var got model.RegisterRequest
	svc := &mockService{registerFn: func(in model.RegisterRequest) (*model.RegisterResponse, error) {
		got = in
		return &model.RegisterResponse{}, nil
	}}
	code, body := postJSON(t, newTestApp(svc), "/register/recruiter",
		`{"full_name":"Grace Hopper","email":"grace@navy.mil","password":"cobol1959","phone_number":"555-123-4567","company_name":"Navy"}`)

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "login.html?role=recruiter", body["redirect"])
	assert.Equal(t, model.RoleRecruiter, got.Role)
	assert.Equal(t, "cobol1959", got.PasswordConfirm)
}

func TestRegister_RoleFromPathWins(t *testing.T) {
	svc := &mockService{}
	code, body := postJSON(t, newTestApp(svc), "/register/freelancer",
		`{"role":"recruiter","full_name":"Ada","email":"a@b.com","password":"password1","phone_number":"5551234567"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please enter your skills", body["fields"].(map[string]any)["skills"])
}

func TestRegister_UnknownRole(t *testing.T) {
	code, _ := postJSON(t, newTestApp(&mockService{}), "/register/admin", `{}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRegister_UpstreamError(t *testing.T) {
	svc := &mockService{registerFn: func(model.RegisterRequest) (*model.RegisterResponse, error) {
		return nil, &api.RequestFailedError{Status: 400, Message: api.GenericFailureMessage, Body: json.RawMessage(`{"email":["user with this email already exists."]}`)}
	}}
	code, body := postJSON(t, newTestApp(svc), "/register/freelancer",
		`{"full_name":"Ada","email":"a@b.com","password":"password1","phone_number":"5551234567","skills":"Go"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Registration failed. Please try again.", body["error"])
	assert.NotNil(t, body["upstream"])
}

// ─── Profile ──────────────────────────────────────────────────────────────────

const profileBody = `{"full_name":"Ada Lovelace","education":"Self-taught","experience":"5","skills":"Go, Postgres","tech_stack":"Linux","portfolio_url":"https://ada.dev","about_me":"I build reliable backend systems."}`

func TestSaveProfile(t *testing.T) {
	var sent model.FreelancerProfile
	svc := &mockService{authenticated: true, profileFn: func(p model.FreelancerProfile) (*model.FreelancerProfile, error) {
		sent = p
		p.ID = 42
		return &p, nil
	}}
	code, body := postJSON(t, newTestApp(svc), "/profile", profileBody)

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Profile saved successfully!", body["message"])
	assert.Equal(t, []string{"Go", "Postgres"}, sent.Skills)
	assert.Equal(t, "available", sent.AvailabilityStatus)
	assert.Equal(t, []string{"profile_update"}, svc.tracked)
	assert.EqualValues(t, 42, svc.meta[0]["profile_id"])
	assert.Equal(t, "5 years", body["preview"].(map[string]any)["experience"])
}

func TestSaveProfile_RequiresLogin(t *testing.T) {
	code, body := postJSON(t, newTestApp(&mockService{}), "/profile", profileBody)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "login.html?role=freelancer", body["redirect"])
}

func TestSaveProfile_SessionExpired(t *testing.T) {
	svc := &mockService{authenticated: true, profileFn: func(model.FreelancerProfile) (*model.FreelancerProfile, error) {
		return nil, &api.SessionExpiredError{}
	}}
	code, body := postJSON(t, newTestApp(svc), "/profile", profileBody)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "login.html", body["redirect"])
	assert.Empty(t, svc.tracked)
}

func TestPreviewProfile(t *testing.T) {
	code, body := postJSON(t, newTestApp(&mockService{}), "/profile/preview", `{}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Your Name", body["name"])
	assert.Equal(t, "No skills added", body["skills_placeholder"])
}

func TestUploadPicture(t *testing.T) {
	var gotID int64
	var gotName, gotData string
	svc := &mockService{authenticated: true, uploadFn: func(id int64, filename string, data []byte) (*model.ProfilePicture, error) {
		gotID, gotName, gotData = id, filename, string(data)
		return &model.ProfilePicture{ID: id, ProfilePicture: "/media/7.png"}, nil
	}}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("profile_picture", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("PNG"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/7/picture", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, body := do(t, newTestApp(svc), req)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/media/7.png", body["profile_picture"])
	assert.Equal(t, int64(7), gotID)
	assert.Equal(t, "me.png", gotName)
	assert.Equal(t, "PNG", gotData)
}

func TestUploadPicture_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/7/picture", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, body := do(t, newTestApp(&mockService{}), req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "profile_picture is required", body["error"])
}

// ─── Health / metrics ─────────────────────────────────────────────────────────

type stubCheck struct{ err error }

func (s stubCheck) HealthCheck(context.Context) error { return s.err }

func TestHealth(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, NewHandler(nil, &mockService{}), map[string]HealthChecker{"store": stubCheck{}})
	code, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	app = fiber.New()
	RegisterRoutes(app, NewHandler(nil, &mockService{}), map[string]HealthChecker{"store": stubCheck{err: errors.New("redis ping failed")}})
	code, body = do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "redis ping failed", body["checks"].(map[string]any)["store"])
}

func TestMetricsEndpoint(t *testing.T) {
	resp, err := newTestApp(&mockService{}).Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
