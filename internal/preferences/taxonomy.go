// Package preferences captures survey responses: at most one per session,
// with values drawn from two coexisting answer taxonomies.
package preferences

import "fmt"

// Taxonomy identifies which closed answer set a preference value belongs to.
// The legacy follow-up set and the current adoption-intent set coexist in
// stored data; classification is the single place that tells them apart.
type Taxonomy string

const (
	TaxonomyEngagementFollowup Taxonomy = "engagement_followup"
	TaxonomyAdoptionIntent     Taxonomy = "adoption_intent"
)

// Legacy engagement follow-up values.
const (
	ValueNothing      = "nothing"
	ValueNotification = "notification"
	ValueUpdates      = "updates"
)

// Current adoption intent values.
const (
	ValueNoWouldntUse = "no_wouldnt_use"
	ValueNotSure      = "not_sure"
	ValueYesWouldUse  = "yes_would_use"
)

// Engagement levels derived from the ordinal weight of a value.
const (
	EngagementLow    = "low"
	EngagementMedium = "medium"
	EngagementHigh   = "high"
)

// Classification is the tagged-union view of a raw preference value.
type Classification struct {
	Value    string
	Taxonomy Taxonomy
	Weight   int // ordinal 0..2 within the taxonomy
}

var classifications = map[string]Classification{
	ValueNothing:      {Value: ValueNothing, Taxonomy: TaxonomyEngagementFollowup, Weight: 0},
	ValueNotification: {Value: ValueNotification, Taxonomy: TaxonomyEngagementFollowup, Weight: 1},
	ValueUpdates:      {Value: ValueUpdates, Taxonomy: TaxonomyEngagementFollowup, Weight: 2},
	ValueNoWouldntUse: {Value: ValueNoWouldntUse, Taxonomy: TaxonomyAdoptionIntent, Weight: 0},
	ValueNotSure:      {Value: ValueNotSure, Taxonomy: TaxonomyAdoptionIntent, Weight: 1},
	ValueYesWouldUse:  {Value: ValueYesWouldUse, Taxonomy: TaxonomyAdoptionIntent, Weight: 2},
}

// Classify resolves a raw value to its taxonomy and ordinal weight.
// It is total over both enums and rejects everything else.
func Classify(value string) (Classification, error) {
	c, ok := classifications[value]
	if !ok {
		return Classification{}, fmt.Errorf("unknown preference value: %q", value)
	}
	return c, nil
}

// IsValidValue reports whether value belongs to either taxonomy.
func IsValidValue(value string) bool {
	_, ok := classifications[value]
	return ok
}

// EngagementLevel maps the ordinal weight to a coarse level label.
func (c Classification) EngagementLevel() string {
	switch c.Weight {
	case 2:
		return EngagementHigh
	case 1:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

// ValuesFor returns the closed value set of one taxonomy in ascending
// weight order.
func ValuesFor(t Taxonomy) []string {
	if t == TaxonomyAdoptionIntent {
		return []string{ValueNoWouldntUse, ValueNotSure, ValueYesWouldUse}
	}
	return []string{ValueNothing, ValueNotification, ValueUpdates}
}
