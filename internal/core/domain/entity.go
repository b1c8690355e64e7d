package domain

import "strings"

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// BucketConfidence projects a numeric score in [0,1] onto the three-level
// scale. The projection is lossy; downstream logic never sees the raw score.
func BucketConfidence(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// FieldSource records where an extracted value came from.
type FieldSource string

const (
	SourceDocument FieldSource = "document"
	SourceEmail    FieldSource = "email"
	SourceUser     FieldSource = "user"
)

// ConfidenceField pairs a value with its confidence level and provenance.
type ConfidenceField[T any] struct {
	Value      T               `json:"value"`
	Confidence ConfidenceLevel `json:"confidence"`
	Source     FieldSource     `json:"source,omitempty"`
}

// SetByUser overwrites the value and treats the correction as ground truth.
func (f *ConfidenceField[T]) SetByUser(value T) {
	f.Value = value
	f.Confidence = ConfidenceHigh
	f.Source = SourceUser
}

func NewField[T any](value T, confidence ConfidenceLevel, source FieldSource) ConfidenceField[T] {
	return ConfidenceField[T]{Value: value, Confidence: confidence, Source: source}
}

type Category string

const (
	CategoryInfrastructure Category = "infrastructure"
	CategoryDistribution   Category = "distribution"
	CategoryDevtools       Category = "devtools"
	CategoryDomains        Category = "domains"
	CategoryAuth           Category = "auth"
	CategoryPayments       Category = "payments"
	CategoryAnalytics      Category = "analytics"
	CategoryCommunication  Category = "communication"
	CategoryOther          Category = "other"
)

var knownCategories = map[Category]struct{}{
	CategoryInfrastructure: {},
	CategoryDistribution:   {},
	CategoryDevtools:       {},
	CategoryDomains:        {},
	CategoryAuth:           {},
	CategoryPayments:       {},
	CategoryAnalytics:      {},
	CategoryCommunication:  {},
	CategoryOther:          {},
}

// ParseCategory normalizes a raw category string, defaulting to other.
func ParseCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownCategories[c]; ok {
		return c
	}
	return CategoryOther
}

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
	CycleOneTime BillingCycle = "one-time"
)

// ParseBillingCycle normalizes a raw frequency string, defaulting to monthly.
func ParseBillingCycle(raw string) BillingCycle {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yearly", "annual", "annually", "year":
		return CycleYearly
	case "one-time", "one_time", "once", "onetime":
		return CycleOneTime
	default:
		return CycleMonthly
	}
}

// MonthlyEquivalent converts an amount under a billing cycle to its monthly
// share: yearly is spread over twelve months, one-time charges contribute
// nothing to recurring cost.
func MonthlyEquivalent(amount float64, cycle BillingCycle) float64 {
	switch cycle {
	case CycleYearly:
		return amount / 12
	case CycleOneTime:
		return 0
	default:
		return amount
	}
}

// ExtractedService is one detected subscription awaiting review.
type ExtractedService struct {
	ID                string                        `json:"id"`
	Name              ConfidenceField[string]       `json:"name"`
	Category          ConfidenceField[Category]     `json:"category"`
	Plan              string                        `json:"plan,omitempty"`
	Amount            ConfidenceField[float64]      `json:"amount"`
	Cycle             ConfidenceField[BillingCycle] `json:"cycle"`
	Currency          ConfidenceField[string]       `json:"currency"`
	RenewalDate       string                        `json:"renewal_date,omitempty"`
	RegistryID        string                        `json:"registry_id,omitempty"`
	SourceDocumentIDs []string                      `json:"source_document_ids,omitempty"`
}

type ProjectType string

const (
	ProjectWeb     ProjectType = "web"
	ProjectMobile  ProjectType = "mobile"
	ProjectAI      ProjectType = "ai"
	ProjectLanding ProjectType = "landing"
)

// ExtractedProject owns its services; discarding the project discards them.
// TotalMonthlyCost is derived and must be recomputed after every mutation.
type ExtractedProject struct {
	ID                string                       `json:"id"`
	Name              ConfidenceField[string]      `json:"name"`
	Type              ConfidenceField[ProjectType] `json:"type"`
	Icon              string                       `json:"icon,omitempty"`
	Confirmed         bool                         `json:"is_confirmed"`
	Services          []ExtractedService           `json:"services"`
	SourceDocumentIDs []string                     `json:"source_document_ids,omitempty"`
	TotalMonthlyCost  float64                      `json:"total_monthly_cost"`
}

// RecomputeTotal re-derives TotalMonthlyCost from the owned services.
func (p *ExtractedProject) RecomputeTotal() {
	total := 0.0
	for _, svc := range p.Services {
		total += MonthlyEquivalent(svc.Amount.Value, svc.Cycle.Value)
	}
	p.TotalMonthlyCost = total
}
