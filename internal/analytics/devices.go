package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// DeviceStats holds session counts for one device type.
type DeviceStats struct {
	DeviceType string `json:"device_type"`
	Sessions   int    `json:"sessions"`
}

// GetDeviceBreakdown returns session counts grouped by device type,
// most common first.
func GetDeviceBreakdown(db *gorm.DB, params QueryParams) ([]DeviceStats, error) {
	tf := params.TimeFrame

	var rows []DeviceStats
	err := db.Raw(`
		SELECT device_type, COUNT(*) AS sessions
		FROM sessions
		WHERE first_seen >= ? AND first_seen <= ?
		GROUP BY device_type
		ORDER BY sessions DESC, device_type ASC
	`, tf.From, tf.To).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate device types: %w", err)
	}
	return rows, nil
}
