package usecase

import (
	"strings"

	"github.com/google/uuid"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

const (
	defaultCurrency    = "USD"
	defaultProjectName = "Imported project"
)

// MapDocumentRows converts raw document-derived extraction rows into
// reviewable services. Category is resolved through the registry snapshot
// and defaults to other; frequency defaults to monthly, currency to USD.
func MapDocumentRows(rows []domain.ServiceRow, registry domain.RegistrySnapshot, sourceDocumentIDs []string) []domain.ExtractedService {
	services := make([]domain.ExtractedService, 0, len(rows))
	for _, row := range rows {
		level := domain.BucketConfidence(row.Confidence)

		name := strings.TrimSpace(row.DetectedName)
		category := domain.CategoryOther
		if entry, ok := registry[row.RegistryID]; ok && row.RegistryID != "" {
			category = entry.Category
			if name == "" {
				name = entry.Name
			}
		}

		currency := strings.ToUpper(strings.TrimSpace(row.Currency))
		if currency == "" {
			currency = defaultCurrency
		}

		services = append(services, domain.ExtractedService{
			ID:                uuid.NewString(),
			Name:              domain.NewField(name, level, domain.SourceDocument),
			Category:          domain.NewField(category, level, domain.SourceDocument),
			Plan:              strings.TrimSpace(row.PlanName),
			Amount:            domain.NewField(row.Amount, level, domain.SourceDocument),
			Cycle:             domain.NewField(domain.ParseBillingCycle(row.Frequency), level, domain.SourceDocument),
			Currency:          domain.NewField(currency, level, domain.SourceDocument),
			RenewalDate:       row.RenewalDate,
			RegistryID:        row.RegistryID,
			SourceDocumentIDs: sourceDocumentIDs,
		})
	}
	return services
}

// MapEmailRows converts raw email-derived invoice rows. The email path does
// not resolve against the registry, so category is always other; confidence
// comes straight from the per-row score.
func MapEmailRows(rows []domain.EmailInvoiceRow) []domain.ExtractedService {
	services := make([]domain.ExtractedService, 0, len(rows))
	for _, row := range rows {
		level := domain.BucketConfidence(row.Confidence)

		currency := strings.ToUpper(strings.TrimSpace(row.Currency))
		if currency == "" {
			currency = defaultCurrency
		}

		services = append(services, domain.ExtractedService{
			ID:          uuid.NewString(),
			Name:        domain.NewField(strings.TrimSpace(row.Name), level, domain.SourceEmail),
			Category:    domain.NewField(domain.CategoryOther, level, domain.SourceEmail),
			Amount:      domain.NewField(row.Amount, level, domain.SourceEmail),
			Cycle:       domain.NewField(domain.ParseBillingCycle(row.BillingCycle), level, domain.SourceEmail),
			Currency:    domain.NewField(currency, level, domain.SourceEmail),
			RenewalDate: row.BillingDate,
		})
	}
	return services
}

// InferProjectType guesses a project classification from the mapped service
// mix. The order is a fixed priority list; first match wins.
func InferProjectType(services []domain.ExtractedService) domain.ProjectType {
	var domainsCount int
	var hasDistribution, hasInfrastructure, hasDevtools bool
	for _, svc := range services {
		switch svc.Category.Value {
		case domain.CategoryDistribution:
			hasDistribution = true
		case domain.CategoryInfrastructure:
			hasInfrastructure = true
		case domain.CategoryDevtools:
			hasDevtools = true
		case domain.CategoryDomains:
			domainsCount++
		}
	}

	switch {
	case hasDistribution:
		return domain.ProjectMobile
	case hasInfrastructure:
		return domain.ProjectWeb
	case hasDevtools:
		return domain.ProjectAI
	case domainsCount == 1:
		return domain.ProjectLanding
	default:
		return domain.ProjectWeb
	}
}

// BuildProjectFromExtraction assembles one reviewable project from a
// successful extraction outcome. Project type inference only runs when the
// extractor supplied no classification of its own.
func BuildProjectFromExtraction(outcome *domain.ExtractionOutcome, sourceDocumentIDs []string) domain.ExtractedProject {
	services := MapDocumentRows(outcome.Services, outcome.Registry, sourceDocumentIDs)

	name := strings.TrimSpace(outcome.SuggestedProjectName)
	nameLevel := domain.ConfidenceMedium
	if name == "" {
		name = defaultProjectName
		nameLevel = domain.ConfidenceLow
	}

	projectType := parseProjectType(outcome.SuggestedProjectType)
	typeLevel := domain.ConfidenceMedium
	if projectType == "" {
		projectType = InferProjectType(services)
		typeLevel = domain.ConfidenceLow
	}

	project := domain.ExtractedProject{
		ID:                uuid.NewString(),
		Name:              domain.NewField(name, nameLevel, domain.SourceDocument),
		Type:              domain.NewField(projectType, typeLevel, domain.SourceDocument),
		Services:          services,
		SourceDocumentIDs: sourceDocumentIDs,
	}
	project.RecomputeTotal()
	return project
}

// BuildProjectFromEmailSync assembles one reviewable project from the email
// flow; the mailbox gives no project hints, so type inference always runs.
func BuildProjectFromEmailSync(outcome *domain.EmailSyncOutcome) domain.ExtractedProject {
	services := MapEmailRows(outcome.Services)

	project := domain.ExtractedProject{
		ID:       uuid.NewString(),
		Name:     domain.NewField("Mailbox subscriptions", domain.ConfidenceLow, domain.SourceEmail),
		Type:     domain.NewField(InferProjectType(services), domain.ConfidenceLow, domain.SourceEmail),
		Services: services,
	}
	project.RecomputeTotal()
	return project
}

func parseProjectType(raw string) domain.ProjectType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "web":
		return domain.ProjectWeb
	case "mobile":
		return domain.ProjectMobile
	case "ai":
		return domain.ProjectAI
	case "landing":
		return domain.ProjectLanding
	default:
		return ""
	}
}
