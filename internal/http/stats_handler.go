package http

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"funneltrack/internal/analytics"
	"funneltrack/internal/config"
	"funneltrack/internal/pkg/async"
	"funneltrack/internal/timeframe"
)

// StatsResponse is the dashboard payload: every funnel block for one date
// range, computed concurrently.
type StatsResponse struct {
	Overview       *analytics.Funnel        `json:"overview"`
	Rates          map[string]float64       `json:"rates"`
	Preferences    *analytics.Breakdown     `json:"preferences"`
	TrafficSources []TrafficSourceView      `json:"traffic_sources"`
	TopSource      *TrafficSourceView       `json:"top_converting_source"`
	Devices        []analytics.DeviceStats  `json:"devices"`
	DailyTrends    []analytics.TrendPoint   `json:"daily_trends"`
	DropOff        *analytics.DropOffReport `json:"drop_off"`
	DateRange      DateRange                `json:"date_range"`
}

// TrafficSourceView decorates a traffic source with a display name for the
// dashboard ("google" renders as "Google", empty sources as "Direct").
type TrafficSourceView struct {
	analytics.SourceStats
	DisplayName string `json:"display_name"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

// StatsIndexAction serves the funnel dashboard for the last N days
// (?days=N, default 30, clamped to a year).
func StatsIndexAction(ctx *cartridge.Context) error {
	days := timeframe.ParseDays(ctx.Query("days"))
	tf := timeframe.LastDays(days)

	ctx.Logger.Info("Stats dashboard accessed",
		slog.Int("days", days),
		slog.String("from", tf.From.Format(timeframe.DateFormat)),
		slog.String("to", tf.To.Format(timeframe.DateFormat)))

	response, err := fetchStats(ctx.DB(), tf, ctx.Logger)
	if err != nil {
		ctx.Logger.Error("Error fetching stats", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error fetching stats",
		})
	}
	response.DateRange = DateRange{
		From: tf.From.Format(timeframe.DateFormat),
		To:   tf.To.Format(timeframe.DateFormat),
		Days: days,
	}

	return ctx.JSON(response)
}

// statsConcurrency bounds how many funnel blocks are computed at once.
const statsConcurrency = 4

func fetchStats(db *gorm.DB, tf *timeframe.TimeFrame, logger *slog.Logger) (*StatsResponse, error) {
	params := analytics.QueryParams{TimeFrame: tf}

	var (
		overview    *analytics.Funnel
		rates       map[string]float64
		prefs       *analytics.Breakdown
		attribution *analytics.Attribution
		devices     []analytics.DeviceStats
		trends      []analytics.TrendPoint
		dropOff     *analytics.DropOffReport
	)

	group := async.NewGroup(statsConcurrency)
	async.Collect(group, &overview, func() (*analytics.Funnel, error) {
		return analytics.GetFunnel(db, params)
	})
	async.Collect(group, &rates, func() (map[string]float64, error) {
		return analytics.GetConversionRates(db, params)
	})
	async.Collect(group, &prefs, func() (*analytics.Breakdown, error) {
		return analytics.GetPreferenceBreakdown(db, params)
	})
	async.Collect(group, &attribution, func() (*analytics.Attribution, error) {
		return analytics.GetTrafficAttribution(db, params)
	})
	async.Collect(group, &devices, func() ([]analytics.DeviceStats, error) {
		return analytics.GetDeviceBreakdown(db, params)
	})
	async.Collect(group, &trends, func() ([]analytics.TrendPoint, error) {
		return analytics.GetTimeSeriesTrends(db, params, timeframe.GranularityDaily)
	})
	async.Collect(group, &dropOff, func() (*analytics.DropOffReport, error) {
		return analytics.IdentifyDropOffPoints(db, params)
	})

	if err := group.Wait(); err != nil {
		logger.Error("Stats block failed", slog.Any("error", err))
		return nil, err
	}

	response := &StatsResponse{
		Overview:       overview,
		Rates:          rates,
		Preferences:    prefs,
		TrafficSources: convertSourceStats(attribution.Sources),
		Devices:        devices,
		DailyTrends:    trends,
		DropOff:        dropOff,
	}
	if attribution.TopConvertingSource != nil {
		view := sourceView(*attribution.TopConvertingSource)
		response.TopSource = &view
	}

	return response, nil
}

func convertSourceStats(sources []analytics.SourceStats) []TrafficSourceView {
	views := make([]TrafficSourceView, len(sources))
	for i, source := range sources {
		views[i] = sourceView(source)
	}
	return views
}

func sourceView(source analytics.SourceStats) TrafficSourceView {
	caser := cases.Title(language.AmericanEnglish)
	display := source.Source
	if display != analytics.DirectTrafficSource {
		display = caser.String(display)
	}
	return TrafficSourceView{SourceStats: source, DisplayName: display}
}

// StatsRealtimeAction reports current activity: today's sessions and
// signups plus sessions active within the configured window.
func StatsRealtimeAction(ctx *cartridge.Context) error {
	window := time.Duration(config.GetConfig().RealtimeWindowMinutes) * time.Minute

	stats, err := analytics.GetRealTimeStats(ctx.DB(), window)
	if err != nil {
		ctx.Logger.Error("Error fetching realtime stats", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error fetching realtime stats",
		})
	}

	return ctx.JSON(stats)
}

// StatsJourneysAction reports the most common event sequences; sampled, so
// served separately from the main dashboard. ?limit=N caps the pattern
// list, defaulting to the engine's top-N bound.
func StatsJourneysAction(ctx *cartridge.Context) error {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	patterns, err := analytics.GetUserJourneyPatterns(ctx.DB(), analytics.QueryParams{Limit: limit})
	if err != nil {
		ctx.Logger.Error("Error fetching journey patterns", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error fetching journey patterns",
		})
	}

	return ctx.JSON(patterns)
}

// StatsWeeklyReportAction composes the last-7-days summary report.
func StatsWeeklyReportAction(ctx *cartridge.Context) error {
	report, err := analytics.GenerateWeeklyReport(ctx.DB())
	if err != nil {
		ctx.Logger.Error("Error generating weekly report", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error generating weekly report",
		})
	}

	return ctx.JSON(report)
}
