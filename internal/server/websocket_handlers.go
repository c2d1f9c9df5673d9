package server

import (
	"errors"
	"log/slog"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/cache"
	"fourwcycle/internal/middleware"
	"fourwcycle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// wsSubjectLocal holds the admin subject a redeemed ticket was issued for.
const wsSubjectLocal = "wsSubject"

// IssueWSTicket hands the calling admin a single-use ticket for the event stream.
// @Summary Issue a websocket ticket
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	p, err := auth.RequireAdmin(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if s.hub == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{Error: "Event stream is disabled"})
	}

	ticket, err := s.tickets.Issue(c.UserContext(), p.Subject)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{Error: "Event stream is disabled"})
		}
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// WSTicketRequired redeems the ?ticket= query parameter and admits only websocket upgrades.
func (s *Server) WSTicketRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if s.hub == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{Error: "Event stream is disabled"})
		}

		subject, ok, err := s.tickets.Redeem(c.UserContext(), c.Query("ticket"))
		if err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "ws ticket redeem failed", slog.String("error", err.Error()))
		}
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewInvalidCredentialError("Invalid or expired WebSocket ticket"))
		}

		c.Locals(wsSubjectLocal, subject)
		return c.Next()
	}
}

// ModerationEventsHandler streams moderation events to a connected admin.
func (s *Server) ModerationEventsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		subject, _ := conn.Locals(wsSubjectLocal).(string)
		if subject == "" || s.hub == nil {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(subject, conn)
		if err != nil {
			middleware.Logger.Warn("moderation stream: register failed",
				slog.String("subject", subject), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
