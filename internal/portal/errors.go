package portal

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jobmarket/marketplace-client/internal/api"
	"github.com/jobmarket/marketplace-client/internal/navigation"
)

// fail maps a pipeline error onto a portal response. fallback is shown when the
// upstream gave no message.
func (h *Handler) fail(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, api.ErrSessionExpired) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":    err.Error(),
			"redirect": navigation.SessionExpiredView(),
		})
	}

	var rf *api.RequestFailedError
	if errors.As(err, &rf) {
		status := rf.Status
		if status < 400 || status >= 500 {
			status = fiber.StatusBadGateway
		}
		msg := rf.Message
		if msg == "" || msg == api.GenericFailureMessage {
			msg = fallback
		}
		return c.Status(status).JSON(fiber.Map{"error": msg, "upstream": rf.Body})
	}

	var te *api.TransportError
	if errors.As(err, &te) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "marketplace API unreachable"})
	}

	var pe *api.ParseError
	if errors.As(err, &pe) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "unexpected response from marketplace API"})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
