// Package sessions holds the visitor session registry: one row per visitor
// journey, keyed by an externally supplied session identifier.
package sessions

import "time"

// Device types reported by the user agent classifier.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// Session represents a single visitor journey through the funnel.
// Counters and the bounce flag are mutated in place as events arrive;
// the row is never deleted in normal operation.
type Session struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SessionID    string `gorm:"uniqueIndex;size:36;not null"`
	IPAddress    string
	UserAgent    string    `gorm:"type:text"`
	FirstSeen    time.Time `gorm:"index;not null"`
	LastActivity time.Time `gorm:"index;not null"`

	// Acquisition attribution
	UTMSource   string `gorm:"index"`
	UTMMedium   string
	UTMCampaign string
	UTMContent  string
	UTMTerm     string
	Referrer    string `gorm:"type:text"`

	// Coarse geography
	CountryCode string `gorm:"size:2"`
	City        string
	Region      string

	// Device classification
	DeviceType string `gorm:"index;default:unknown"`
	Browser    string
	OS         string

	// Engagement counters
	PageViews  int  `gorm:"not null;default:0"`
	TimeOnSite int  `gorm:"not null;default:0"` // seconds
	IsBounce   bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
