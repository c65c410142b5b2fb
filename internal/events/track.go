package events

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"funneltrack/internal/pkg/geoip"
	ua "funneltrack/internal/pkg/useragent"
	"funneltrack/internal/sessions"
)

// ErrUnknownEventType is returned when the submitted event type is not part
// of the closed enum. It is the only validation failure ingestion surfaces.
var ErrUnknownEventType = errors.New("unknown event type")

// TrackEventInput defines the input required to track an event.
type TrackEventInput struct {
	SessionID         string
	EventType         EventType
	IPAddress         string
	UserAgent         string
	PageURL           string
	PageTitle         string
	ElementID         string
	ElementText       string
	TimeSincePageLoad *int
	Metadata          map[string]interface{}
	Timestamp         time.Time
}

// TrackResult reports what ingestion actually did, including whether the
// supplied session identifier had to be silently replaced.
type TrackResult struct {
	Event           *Event
	SessionID       string
	SessionRepaired bool
	SessionCreated  bool
}

// TrackEvent appends an immutable event row, resolving or creating its
// session and applying type-specific session side effects, all inside one
// write transaction. Malformed session identifiers are repaired rather than
// rejected: this path must never block or fail a visitor's page for
// recoverable input problems.
func TrackEvent(dbManager cartridge.DBManager, logger *slog.Logger, input *TrackEventInput) (*TrackResult, error) {
	if !input.EventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, input.EventType)
	}

	sessionID, repaired := sessions.ResolveSessionID(logger, input.SessionID)

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	db := dbManager.GetConnection()
	result := &TrackResult{SessionID: sessionID, SessionRepaired: repaired}

	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		session, created, err := sessions.GetOrCreate(tx, sessionID, newSessionInput(input))
		if err != nil {
			return err
		}
		result.SessionCreated = created

		event := &Event{
			SessionID:         session.SessionID,
			EventType:         input.EventType,
			Timestamp:         timestamp.UTC(),
			PageURL:           input.PageURL,
			PageTitle:         input.PageTitle,
			ElementID:         input.ElementID,
			ElementText:       input.ElementText,
			Metadata:          MetadataFromMap(input.Metadata),
			TimeSincePageLoad: input.TimeSincePageLoad,
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		result.Event = event

		if err := applySideEffects(tx, logger, session.SessionID, input.EventType, input.Metadata); err != nil {
			return err
		}
		return sessions.Touch(tx, session.SessionID, timestamp)
	})
	if err != nil {
		logger.Error("Failed to track event",
			slog.String("session_id", sessionID),
			slog.String("event_type", string(input.EventType)),
			slog.Any("error", err))
		return nil, err
	}

	return result, nil
}

// applySideEffects mutates the session row according to the event type.
// Bad or missing metadata degrades to a no-op: side effects must not raise
// for recoverable input problems.
func applySideEffects(tx *gorm.DB, logger *slog.Logger, sessionID string, eventType EventType, metadata map[string]interface{}) error {
	switch eventType {
	case EventTypePageView:
		return sessions.RecordPageView(tx, sessionID)
	case EventTypeSurveyStart:
		return sessions.ClearBounce(tx, sessionID)
	case EventTypePageExit:
		seconds := timeOnPageSeconds(metadata)
		if seconds == 0 {
			logger.Debug("Page exit without usable time_on_page metadata",
				slog.String("session_id", sessionID))
			return nil
		}
		return sessions.RecordTimeOnSite(tx, sessionID, seconds)
	}
	return nil
}

// newSessionInput builds the enrichment attributes for a first-seen session:
// device classification from the user agent, optional geography from the
// client IP, and attribution from the landing URL.
func newSessionInput(input *TrackEventInput) sessions.NewSessionInput {
	parsed := ua.Parse(input.UserAgent)
	location := geoip.Lookup(input.IPAddress)
	utm := parseUTM(input.PageURL)

	return sessions.NewSessionInput{
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
		UTMSource:   utm.source,
		UTMMedium:   utm.medium,
		UTMCampaign: utm.campaign,
		UTMContent:  utm.content,
		UTMTerm:     utm.term,
		Referrer:    utm.referrer,
		CountryCode: location.CountryCode,
		City:        location.City,
		Region:      location.Region,
		DeviceType:  parsed.DeviceType(),
		Browser:     parsed.Browser,
		OS:          parsed.OS,
	}
}

type utmData struct {
	source   string
	medium   string
	campaign string
	content  string
	term     string
	referrer string
}

// parseUTM extracts acquisition attribution from the landing URL's query
// string. Absent parameters stay empty; the analytics layer reports empty
// sources as direct traffic.
func parseUTM(rawURL string) utmData {
	if rawURL == "" {
		return utmData{}
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return utmData{}
	}
	query := parsedURL.Query()
	return utmData{
		source:   query.Get("utm_source"),
		medium:   query.Get("utm_medium"),
		campaign: query.Get("utm_campaign"),
		content:  query.Get("utm_content"),
		term:     query.Get("utm_term"),
		referrer: query.Get("ref"),
	}
}
