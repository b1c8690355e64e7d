package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

func TestBucketConfidenceBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.ConfidenceLevel
	}{
		{0.0, domain.ConfidenceLow},
		{0.49, domain.ConfidenceLow},
		{0.5, domain.ConfidenceMedium},
		{0.79, domain.ConfidenceMedium},
		{0.8, domain.ConfidenceHigh},
		{1.0, domain.ConfidenceHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.BucketConfidence(tc.score), "score %v", tc.score)
	}
}

func TestMapDocumentRowsResolvesCategoryViaRegistry(t *testing.T) {
	registry := domain.RegistrySnapshot{
		"reg-aws": {ID: "reg-aws", Name: "AWS", Category: domain.CategoryInfrastructure},
	}
	rows := []domain.ServiceRow{
		{RegistryID: "reg-aws", DetectedName: "Amazon Web Services", Confidence: 0.91, Amount: 120, Currency: "usd", Frequency: "monthly"},
		{RegistryID: "reg-missing", DetectedName: "Mystery", Confidence: 0.6, Amount: 5},
	}

	services := MapDocumentRows(rows, registry, []string{"doc-1"})
	require.Len(t, services, 2)

	assert.Equal(t, domain.CategoryInfrastructure, services[0].Category.Value)
	assert.Equal(t, domain.ConfidenceHigh, services[0].Name.Confidence)
	assert.Equal(t, "USD", services[0].Currency.Value)
	assert.Equal(t, domain.SourceDocument, services[0].Name.Source)
	assert.Equal(t, []string{"doc-1"}, services[0].SourceDocumentIDs)

	assert.Equal(t, domain.CategoryOther, services[1].Category.Value)
	assert.Equal(t, domain.ConfidenceMedium, services[1].Amount.Confidence)
	assert.Equal(t, domain.CycleMonthly, services[1].Cycle.Value, "nil frequency defaults to monthly")
	assert.Equal(t, "USD", services[1].Currency.Value, "absent currency defaults to USD")
}

func TestMapDocumentRowsFallsBackToRegistryName(t *testing.T) {
	registry := domain.RegistrySnapshot{
		"reg-vercel": {ID: "reg-vercel", Name: "Vercel", Category: domain.CategoryInfrastructure},
	}
	services := MapDocumentRows([]domain.ServiceRow{{RegistryID: "reg-vercel", Confidence: 0.85}}, registry, nil)
	require.Len(t, services, 1)
	assert.Equal(t, "Vercel", services[0].Name.Value)
}

func TestMapEmailRowsAlwaysDefaultsCategory(t *testing.T) {
	rows := []domain.EmailInvoiceRow{
		{Name: "Netlify", Amount: 19, Currency: "eur", BillingCycle: "yearly", Confidence: 0.42},
	}

	services := MapEmailRows(rows)
	require.Len(t, services, 1)

	assert.Equal(t, domain.ConfidenceLow, services[0].Name.Confidence)
	assert.Equal(t, domain.CategoryOther, services[0].Category.Value)
	assert.Equal(t, domain.CycleYearly, services[0].Cycle.Value)
	assert.Equal(t, "EUR", services[0].Currency.Value)
	assert.Equal(t, domain.SourceEmail, services[0].Amount.Source)
}

func svcWithCategory(c domain.Category) domain.ExtractedService {
	return domain.ExtractedService{
		Category: domain.NewField(c, domain.ConfidenceHigh, domain.SourceDocument),
	}
}

func TestInferProjectTypePriorityOrder(t *testing.T) {
	cases := []struct {
		name       string
		categories []domain.Category
		want       domain.ProjectType
	}{
		{"distribution wins over infrastructure", []domain.Category{domain.CategoryInfrastructure, domain.CategoryDistribution}, domain.ProjectMobile},
		{"infrastructure before devtools", []domain.Category{domain.CategoryDevtools, domain.CategoryInfrastructure}, domain.ProjectWeb},
		{"devtools alone", []domain.Category{domain.CategoryDevtools, domain.CategoryOther}, domain.ProjectAI},
		{"single domains entry", []domain.Category{domain.CategoryDomains}, domain.ProjectLanding},
		{"two domains entries fall through", []domain.Category{domain.CategoryDomains, domain.CategoryDomains}, domain.ProjectWeb},
		{"empty set", nil, domain.ProjectWeb},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			services := make([]domain.ExtractedService, 0, len(tc.categories))
			for _, c := range tc.categories {
				services = append(services, svcWithCategory(c))
			}
			assert.Equal(t, tc.want, InferProjectType(services))
		})
	}
}

func TestBuildProjectFromExtractionInfersTypeOnlyWhenMissing(t *testing.T) {
	outcome := &domain.ExtractionOutcome{
		SuggestedProjectName: "acme-app",
		SuggestedProjectType: "mobile",
		Services:             []domain.ServiceRow{{DetectedName: "Sentry", Confidence: 0.9, Amount: 26, Frequency: "monthly"}},
	}

	project := BuildProjectFromExtraction(outcome, []string{"doc-1"})
	assert.Equal(t, "acme-app", project.Name.Value)
	assert.Equal(t, domain.ProjectMobile, project.Type.Value)
	assert.Equal(t, domain.ConfidenceMedium, project.Type.Confidence)

	outcome.SuggestedProjectType = ""
	project = BuildProjectFromExtraction(outcome, nil)
	assert.Equal(t, domain.ProjectWeb, project.Type.Value, "no classification falls back to inference")
	assert.Equal(t, domain.ConfidenceLow, project.Type.Confidence)
}

func TestBuildProjectFromExtractionComputesMonthlyTotal(t *testing.T) {
	outcome := &domain.ExtractionOutcome{
		Services: []domain.ServiceRow{
			{DetectedName: "Vercel", Confidence: 0.9, Amount: 20, Frequency: "monthly"},
			{DetectedName: "Namecheap", Confidence: 0.9, Amount: 24, Frequency: "yearly"},
			{DetectedName: "Setup fee", Confidence: 0.9, Amount: 500, Frequency: "one-time"},
		},
	}

	project := BuildProjectFromExtraction(outcome, nil)
	assert.InDelta(t, 22.0, project.TotalMonthlyCost, 1e-9)
	assert.Equal(t, defaultProjectName, project.Name.Value)
	assert.Equal(t, domain.ConfidenceLow, project.Name.Confidence)
}
