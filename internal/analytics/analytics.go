// Package analytics implements the funnel analytics engine: stateless
// calculators over the session registry, event store, preference capture and
// conversion records. It is organized into modules:
//
// - funnel.go: conversion funnel counts with a short-TTL result cache
// - rates.go: step-to-step conversion rates
// - preferences.go: preference segmentation and the insight rule engine
// - attribution.go: traffic source attribution
// - trends.go: time series with precomputed/raw-fact source selection
// - dropoff.go: benchmark-driven drop-off detection
// - devices.go: device type breakdown
// - realtime.go: uncached live dashboard counters
// - report.go: weekly roll-up report
// - journeys.go: common event sequence patterns
//
// All reads are pure; nothing here takes locks or blocks ingestion.
package analytics

import (
	"funneltrack/internal/timeframe"
)

// QueryParams carries the scoping arguments shared by the engine's
// calculators.
type QueryParams struct {
	TimeFrame *timeframe.TimeFrame
	Limit     int
}

// DefaultQueryLimit bounds top-N result sets when no explicit limit is set.
const DefaultQueryLimit = 10

// LimitOrDefault returns the effective row limit for top-N queries.
func (p QueryParams) LimitOrDefault() int {
	if p.Limit > 0 {
		return p.Limit
	}
	return DefaultQueryLimit
}
