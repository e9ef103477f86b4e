package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/navigation"
	"github.com/jobmarket/marketplace-client/internal/validation"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// SessionService is the part of the API client the portal drives. *api.Client satisfies it.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, in model.RegisterRequest) (*model.RegisterResponse, error)
	IsAuthenticated() bool
	User(ctx context.Context) (*model.User, error)
	CreateFreelancerProfile(ctx context.Context, p model.FreelancerProfile) (*model.FreelancerProfile, error)
	UploadProfilePicture(ctx context.Context, profileID int64, filename string, r io.Reader) (*model.ProfilePicture, error)
	TrackEvent(ctx context.Context, eventType string, metadata map[string]any) error
}

// Handler serves the session flows of the marketplace front end.
type Handler struct {
	logger  *zap.Logger
	service SessionService
}

func NewHandler(logger *zap.Logger, service SessionService) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, service: service}
}

// Session reports whether a user is signed in and where an anonymous caller should go.
func (h *Handler) Session(c *fiber.Ctx) error {
	user, err := h.service.User(c.UserContext())
	if err != nil {
		h.logger.Warn("portal.session.user_unreadable", zap.Error(err))
	}
	authed := h.service.IsAuthenticated()
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	role := navigation.RoleFromQuery(query)
	if user != nil {
		role = user.Role
	}
	return c.JSON(SessionResponse{
		Authenticated: authed,
		User:          user,
		Redirect:      navigation.RequireAuth(authed, role),
	})
}

// Login validates the form, signs in, and rejects accounts registered under another role.
func (h *Handler) Login(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := form.Validate(); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.UserContext()
	out, err := h.service.Login(ctx, form.Email, form.Password)
	if err != nil {
		h.logger.Info("portal.login.failed", zap.Error(err))
		return h.fail(c, err, "Invalid credentials. Please try again.")
	}
	if out.User == nil {
		h.logout(ctx)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "login response did not include a user"})
	}
	if out.User.Role != form.Role {
		h.logout(ctx)
		h.logger.Info("portal.login.role_mismatch",
			zap.String("registered", string(out.User.Role)),
			zap.String("selected", string(form.Role)))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": fmt.Sprintf("This account is registered as a %s, not a %s.", out.User.Role, form.Role),
		})
	}

	h.track(ctx, "login", map[string]any{"role": out.User.Role})

	return c.JSON(LoginResponse{
		Message:  "Login successful! Redirecting...",
		User:     out.User,
		Redirect: navigation.AfterLogin(out.User.Role),
	})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.service.Logout(c.UserContext()); err != nil {
		h.logger.Error("portal.logout.failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(RedirectResponse{Redirect: navigation.AfterLogout()})
}

// Register handles signup for the role in the path.
func (h *Handler) Register(c *fiber.Ctx) error {
	role := model.Role(c.Params("role"))
	if !role.Valid() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown role"})
	}

	var form validation.RegistrationForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	form.Role = role
	if err := form.Validate(); err != nil {
		return validationFailed(c, err)
	}

	if _, err := h.service.Register(c.UserContext(), form.Request()); err != nil {
		h.logger.Info("portal.register.failed", zap.String("role", string(role)), zap.Error(err))
		return h.fail(c, err, "Registration failed. Please try again.")
	}

	h.logger.Info("portal.register.ok", zap.String("role", string(role)))
	return c.Status(fiber.StatusCreated).JSON(MessageResponse{
		Message:  "Registration successful! Please check your email to verify your account.",
		Redirect: navigation.LoginView(role),
	})
}

// SaveProfile validates and creates the freelancer profile.
func (h *Handler) SaveProfile(c *fiber.Ctx) error {
	if !h.service.IsAuthenticated() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":    "login required",
			"redirect": navigation.LoginView(model.RoleFreelancer),
		})
	}

	var form validation.ProfileForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := form.Validate(); err != nil {
		return validationFailed(c, err)
	}

	ctx := c.UserContext()
	profile, err := h.service.CreateFreelancerProfile(ctx, form.ToProfile())
	if err != nil {
		h.logger.Warn("portal.profile.save_failed", zap.Error(err))
		return h.fail(c, err, "Failed to save profile. Please try again.")
	}

	h.track(ctx, "profile_update", map[string]any{"profile_id": profile.ID})

	return c.Status(fiber.StatusCreated).JSON(ProfileResponse{
		Message: "Profile saved successfully!",
		Profile: profile,
		Preview: form.Preview(),
	})
}

// PreviewProfile renders the form without validating or saving it.
func (h *Handler) PreviewProfile(c *fiber.Ctx) error {
	var form validation.ProfileForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(form.Preview())
}

// UploadPicture forwards the multipart profile_picture file.
func (h *Handler) UploadPicture(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid profile id"})
	}
	fh, err := c.FormFile("profile_picture")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "profile_picture is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	defer func() { _ = f.Close() }()

	out, err := h.service.UploadProfilePicture(c.UserContext(), int64(id), fh.Filename, f)
	if err != nil {
		h.logger.Warn("portal.picture.upload_failed", zap.Int("profile_id", id), zap.Error(err))
		return h.fail(c, err, "Failed to upload picture.")
	}
	return c.JSON(out)
}

// track records an analytics event; failures never affect the flow.
func (h *Handler) track(ctx context.Context, eventType string, metadata map[string]any) {
	if err := h.service.TrackEvent(ctx, eventType, metadata); err != nil {
		h.logger.Warn("portal.track_failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (h *Handler) logout(ctx context.Context) {
	if err := h.service.Logout(ctx); err != nil {
		h.logger.Warn("portal.logout.failed", zap.Error(err))
	}
}

func validationFailed(c *fiber.Ctx, err error) error {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation failed", "fields": fe})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}
