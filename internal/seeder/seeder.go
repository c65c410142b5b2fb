// Package seeder populates a development database with realistic funnel
// traffic: sessions walking the ad -> page -> survey -> signup journey
// with plausible drop-off at each step.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"

	"funneltrack/internal/conversions"
	"funneltrack/internal/dailystats"
	"funneltrack/internal/events"
	"funneltrack/internal/preferences"
	"funneltrack/internal/users"
)

// Seeder handles the demo data generation process.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	Days         int
	SessionCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, days, sessionCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if days < 1 {
		days = 30
	}
	if sessionCount < 10 {
		sessionCount = 10
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		Days:         days,
		SessionCount: sessionCount,
	}
}

var trafficSources = []string{"", "", "google", "google", "facebook", "twitter", "newsletter"}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Firefox/121.0",
}

var preferenceValues = []string{
	preferences.ValueNothing,
	preferences.ValueNotification,
	preferences.ValueNotification,
	preferences.ValueUpdates,
	preferences.ValueUpdates,
	preferences.ValueUpdates,
	preferences.ValueNoWouldntUse,
	preferences.ValueNotSure,
	preferences.ValueYesWouldUse,
	preferences.ValueYesWouldUse,
}

// Run generates the full demo dataset: sessions with funnel events,
// signups with preferences, an admin user, and daily aggregates.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding funnel data...",
		slog.Int("days", s.Days),
		slog.Int("sessions", s.SessionCount))

	signups := 0
	for i := 0; i < s.SessionCount; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		converted, err := s.seedSession(i)
		if err != nil {
			return fmt.Errorf("failed to seed session %d: %w", i, err)
		}
		if converted {
			signups++
		}
	}

	if err := s.seedAdminUser(); err != nil {
		return err
	}

	if _, err := dailystats.Backfill(s.DBManager, s.Logger, true); err != nil {
		return fmt.Errorf("failed to backfill aggregates: %w", err)
	}

	s.Logger.Info("Seeding completed",
		slog.Int("sessions", s.SessionCount),
		slog.Int("signups", signups),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedSession walks one visitor through the funnel with drop-off odds
// roughly matching a real campaign. Returns whether the visitor signed up.
func (s *Seeder) seedSession(index int) (bool, error) {
	sessionID := uuid.NewString()
	userAgent := userAgents[rand.IntN(len(userAgents))]
	source := trafficSources[rand.IntN(len(trafficSources))]

	pageURL := "https://example.com/launch"
	if source != "" {
		pageURL += "?utm_source=" + source + "&utm_medium=cpc&utm_campaign=launch"
	}

	baseTime := time.Now().UTC().
		Add(-time.Duration(rand.IntN(s.Days*24*60)) * time.Minute)
	clock := baseTime

	track := func(eventType events.EventType, metadata map[string]interface{}) error {
		_, err := events.TrackEvent(s.DBManager, s.Logger, &events.TrackEventInput{
			SessionID: sessionID,
			EventType: eventType,
			UserAgent: userAgent,
			PageURL:   pageURL,
			PageTitle: "Launch - Example",
			Metadata:  metadata,
			Timestamp: clock,
		})
		clock = clock.Add(time.Duration(5+rand.IntN(40)) * time.Second)
		return err
	}

	if rand.Float64() < 0.7 {
		if err := track(events.EventTypeAdImpression, nil); err != nil {
			return false, err
		}
		if err := track(events.EventTypeAdClick, nil); err != nil {
			return false, err
		}
	}
	if err := track(events.EventTypePageView, nil); err != nil {
		return false, err
	}

	converted := false
	if rand.Float64() < 0.4 {
		if err := track(events.EventTypeSurveyStart, nil); err != nil {
			return false, err
		}
		if rand.Float64() < 0.7 {
			if err := track(events.EventTypeSurveyComplete, nil); err != nil {
				return false, err
			}
			if rand.Float64() < 0.6 {
				if err := track(events.EventTypeFormFocus, nil); err != nil {
					return false, err
				}
				if err := track(events.EventTypeFormStart, nil); err != nil {
					return false, err
				}
				if err := track(events.EventTypeSignupAttempt, nil); err != nil {
					return false, err
				}
				if rand.Float64() < 0.9 {
					if err := track(events.EventTypeSignupSuccess, nil); err != nil {
						return false, err
					}
					if err := s.seedSignup(sessionID, index); err != nil {
						return false, err
					}
					converted = true
				}
			}
		}
	}

	timeOnPage := (10 + rand.IntN(300)) * 1000
	if err := track(events.EventTypePageExit, map[string]interface{}{
		"time_on_page": timeOnPage,
	}); err != nil {
		return false, err
	}

	return converted, nil
}

func (s *Seeder) seedSignup(sessionID string, index int) error {
	_, err := conversions.Submit(s.DBManager, s.Logger, &conversions.SubmitInput{
		SessionID:        sessionID,
		Name:             fmt.Sprintf("Demo Visitor %d", index),
		Email:            fmt.Sprintf("visitor%d@example.com", index),
		Preference:       preferenceValues[rand.IntN(len(preferenceValues))],
		TimeToSelect:     1 + rand.Float64()*10,
		ChangedMindCount: rand.IntN(3),
	})
	if err != nil {
		return fmt.Errorf("failed to record signup for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Seeder) seedAdminUser() error {
	db := s.DBManager.GetConnection()
	err := users.CreateAdminUser(db, "admin@example.com", "password123")
	if err != nil && !errors.Is(err, users.ErrUserExists) {
		return fmt.Errorf("failed to create demo admin user: %w", err)
	}
	s.Logger.Info("Demo admin user ready", slog.String("email", "admin@example.com"))
	return nil
}
