// Package geoip provides optional coarse geography lookups for visitor
// sessions from a local GeoLite2 City database. When the database is not
// configured or not present, lookups return empty results and tracking
// proceeds without geography.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"

	"funneltrack/internal/config"
)

// Location is the session-level geography extracted from an IP address.
// The IP address itself is only used for the lookup and never stored.
type Location struct {
	CountryCode string
	CountryName string
	City        string
	Region      string
}

var (
	geoDB     *geoip2.Reader
	once      sync.Once
	mu        sync.RWMutex
	logger    *slog.Logger
	countries = gountries.New()
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	logger = l
}

// InitGeoDB initializes the GeoLite2 database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func InitGeoDB() *geoip2.Reader {
	cfg := config.GetConfig()
	if cfg.GeoDBPath == "" {
		if logger != nil {
			logger.Debug("GeoIP database path not configured - geography disabled")
		}
		return nil
	}

	if _, err := os.Stat(cfg.GeoDBPath); os.IsNotExist(err) {
		if logger != nil {
			logger.Info("GeoLite2 database not found - geography disabled",
				slog.String("path", cfg.GeoDBPath),
				slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		}
		return nil
	} else if err != nil {
		if logger != nil {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(cfg.GeoDBPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open GeoLite2 database",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	if logger != nil {
		logger.Info("GeoLite2 database initialized successfully",
			slog.String("path", cfg.GeoDBPath))
	}
	return db
}

// GetGeoDB returns the GeoLite2 database reader, initializing it if necessary.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = InitGeoDB()
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reloads the GeoLite2 database from disk.
// Call this after downloading a new database file.
func ReloadGeoDB() {
	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = InitGeoDB()

	if geoDB != nil && logger != nil {
		logger.Info("GeoLite2 database reloaded successfully")
	}
}

// Lookup resolves an IP address to coarse geography. Unresolvable or
// private addresses, and a missing database, all yield an empty Location.
func Lookup(ipAddress string) Location {
	db := GetGeoDB()
	if db == nil {
		return Location{}
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return Location{}
	}

	record, err := db.City(ip)
	if err != nil || record.Country.IsoCode == "" {
		return Location{}
	}

	location := Location{
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		location.Region = record.Subdivisions[0].Names["en"]
	}

	// Prefer the normalized country name over the raw MaxMind one.
	if country, err := countries.FindCountryByAlpha(location.CountryCode); err == nil {
		location.CountryName = country.Name.Common
	} else {
		location.CountryName = record.Country.Names["en"]
	}

	return location
}
