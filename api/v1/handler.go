package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"funneltrack/internal/conversions"
	"funneltrack/internal/events"
	"funneltrack/internal/preferences"
)

const errInvalidRequest = "Invalid request"

// TrackEventParams is the JSON body accepted by the tracking endpoints.
type TrackEventParams struct {
	SessionID         string                 `json:"session_id"`
	EventType         events.EventType       `json:"event_type"`
	PageURL           string                 `json:"page_url"`
	PageTitle         string                 `json:"page_title"`
	ElementID         string                 `json:"element_id"`
	ElementText       string                 `json:"element_text"`
	TimeSincePageLoad *int                   `json:"time_since_page_load"`
	Metadata          map[string]interface{} `json:"metadata"`
	Timestamp         time.Time              `json:"timestamp"`
}

// SubmitSignupParams is the JSON body accepted by the signup endpoint.
type SubmitSignupParams struct {
	SessionID        string  `json:"session_id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Preference       string  `json:"preference"`
	TimeToSelect     float64 `json:"time_to_select"`
	ChangedMindCount int     `json:"changes_made"`
}

// TrackEventHandler records a single funnel event. Only an unknown event
// type or a missing body is rejected; recoverable problems such as a
// malformed session identifier are repaired server-side.
func TrackEventHandler(ctx *cartridge.Context) error {
	var params TrackEventParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse track request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   errInvalidRequest,
		})
	}
	if params.SessionID == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "session_id is required",
		})
	}
	if params.EventType == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "event_type is required",
		})
	}

	input := &events.TrackEventInput{
		SessionID:         params.SessionID,
		EventType:         params.EventType,
		IPAddress:         clientIP(ctx.Ctx),
		UserAgent:         userAgentHeader(ctx),
		PageURL:           params.PageURL,
		PageTitle:         params.PageTitle,
		ElementID:         params.ElementID,
		ElementText:       params.ElementText,
		TimeSincePageLoad: params.TimeSincePageLoad,
		Metadata:          params.Metadata,
		Timestamp:         params.Timestamp,
	}

	result, err := events.TrackEvent(ctx.DBManager, ctx.Logger, input)
	if err != nil {
		if errors.Is(err, events.ErrUnknownEventType) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Unknown event type",
			})
		}
		ctx.Logger.Error("Failed to track event", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to track event",
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"success":    true,
		"session_id": result.SessionID,
	})
}

// TrackEventBeaconHandler accepts events sent via navigator.sendBeacon,
// which browsers post as text/plain during page unload. Beacon responses
// are never read by the client, so every outcome returns 202.
func TrackEventBeaconHandler(ctx *cartridge.Context) error {
	var params TrackEventParams
	if err := json.Unmarshal(ctx.Body(), &params); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}
	if params.EventType == "" {
		return ctx.SendStatus(http.StatusAccepted)
	}

	input := &events.TrackEventInput{
		SessionID:         params.SessionID,
		EventType:         params.EventType,
		IPAddress:         clientIP(ctx.Ctx),
		UserAgent:         userAgentHeader(ctx),
		PageURL:           params.PageURL,
		PageTitle:         params.PageTitle,
		ElementID:         params.ElementID,
		ElementText:       params.ElementText,
		TimeSincePageLoad: params.TimeSincePageLoad,
		Metadata:          params.Metadata,
		Timestamp:         params.Timestamp,
	}

	if _, err := events.TrackEvent(ctx.DBManager, ctx.Logger, input); err != nil {
		ctx.Logger.Error("Failed to track beacon event",
			slog.String("event_type", string(params.EventType)),
			slog.Any("error", err))
	}
	return ctx.SendStatus(http.StatusAccepted)
}

// SubmitSignupHandler records a signup conversion together with the
// visitor's follow-up preference.
func SubmitSignupHandler(ctx *cartridge.Context) error {
	var params SubmitSignupParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse signup request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   errInvalidRequest,
		})
	}

	input := &conversions.SubmitInput{
		SessionID:        params.SessionID,
		Name:             params.Name,
		Email:            params.Email,
		Preference:       params.Preference,
		TimeToSelect:     params.TimeToSelect,
		ChangedMindCount: params.ChangedMindCount,
	}

	record, err := conversions.Submit(ctx.DBManager, ctx.Logger, input)
	if err != nil {
		var validationErr *conversions.ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"errors":  validationErr.Fields,
			})
		}

		var duplicateErr *conversions.DuplicateError
		if errors.As(err, &duplicateErr) {
			return ctx.Status(http.StatusBadRequest).JSON(duplicateResponse(duplicateErr))
		}

		ctx.Logger.Error("Failed to submit signup", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to submit signup",
		})
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      record.ID,
		"name":    record.Name,
		"email":   record.Email,
	})
}

func duplicateResponse(dup *conversions.DuplicateError) fiber.Map {
	response := fiber.Map{
		"success":           false,
		"duplicate":         true,
		"duplicate_type":    dup.Type,
		"registration_date": dup.RegistrationDate(),
	}
	switch dup.Type {
	case conversions.DuplicateTypeSession:
		response["error"] = "This session has already signed up"
		response["existing_email"] = dup.ExistingEmail
	case conversions.DuplicateTypeEmail:
		response["error"] = "This email is already registered"
	}
	return response
}

// VerifySignupHandler confirms a signup from the emailed verification link.
// The response includes the visitor's stored preference so the confirmation
// page can tailor its follow-up copy.
func VerifySignupHandler(ctx *cartridge.Context) error {
	token := ctx.Query("token")
	if token == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "token parameter is required",
		})
	}

	record, err := conversions.VerifyByToken(ctx.DBManager, ctx.Logger, token)
	if err != nil {
		ctx.Logger.Error("Failed to verify signup", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to verify signup",
		})
	}
	if record == nil {
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Unknown verification token",
		})
	}

	response := fiber.Map{
		"success": true,
		"email":   record.Email,
	}
	if record.SessionID != nil {
		pref, prefErr := preferences.ForSession(ctx.DBManager.GetConnection(), *record.SessionID)
		if prefErr != nil {
			ctx.Logger.Error("Failed to load preference for verified signup", slog.Any("error", prefErr))
		} else if pref != nil {
			response["preference"] = pref.Preference
		}
	}
	return ctx.JSON(response)
}

// EmailExistsHandler lets the signup form warn about an already-registered
// email before submission.
func EmailExistsHandler(ctx *cartridge.Context) error {
	email := ctx.Query("email")
	if email == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "email parameter is required",
		})
	}

	exists, err := conversions.EmailExists(ctx.DBManager.GetConnection(), email)
	if err != nil {
		ctx.Logger.Error("Failed to check email", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check email",
		})
	}

	return ctx.JSON(fiber.Map{"exists": exists})
}

func userAgentHeader(ctx *cartridge.Context) string {
	if forwarded := ctx.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return ctx.Get("User-Agent")
}
