package usecase

import (
	"testing"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

func sampleProject() domain.ExtractedProject {
	project := domain.ExtractedProject{
		ID:   "proj-1",
		Name: domain.NewField("acme", domain.ConfidenceMedium, domain.SourceDocument),
		Type: domain.NewField(domain.ProjectWeb, domain.ConfidenceLow, domain.SourceDocument),
		Services: []domain.ExtractedService{
			{
				ID:         "svc-1",
				Name:       domain.NewField("Vercel", domain.ConfidenceLow, domain.SourceDocument),
				Category:   domain.NewField(domain.CategoryInfrastructure, domain.ConfidenceMedium, domain.SourceDocument),
				Amount:     domain.NewField(20.0, domain.ConfidenceMedium, domain.SourceDocument),
				Cycle:      domain.NewField(domain.CycleMonthly, domain.ConfidenceMedium, domain.SourceDocument),
				Currency:   domain.NewField("USD", domain.ConfidenceHigh, domain.SourceDocument),
				RegistryID: "reg-vercel",
			},
			{
				ID:       "svc-2",
				Name:     domain.NewField("Namecheap", domain.ConfidenceHigh, domain.SourceDocument),
				Category: domain.NewField(domain.CategoryDomains, domain.ConfidenceHigh, domain.SourceDocument),
				Amount:   domain.NewField(24.0, domain.ConfidenceHigh, domain.SourceDocument),
				Cycle:    domain.NewField(domain.CycleYearly, domain.ConfidenceHigh, domain.SourceDocument),
				Currency: domain.NewField("USD", domain.ConfidenceHigh, domain.SourceDocument),
			},
		},
	}
	project.RecomputeTotal()
	return project
}

func TestEditFieldForcesHighConfidence(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	if err := session.EditField("svc-1", "name", "Vercel Pro"); err != nil {
		t.Fatalf("EditField() error = %v", err)
	}

	svc := session.Projects()[0].Services[0]
	if svc.Name.Value != "Vercel Pro" {
		t.Fatalf("expected edited name, got %q", svc.Name.Value)
	}
	if svc.Name.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected high confidence after edit, got %s", svc.Name.Confidence)
	}
	if svc.Name.Source != domain.SourceUser {
		t.Fatalf("expected user provenance after edit, got %s", svc.Name.Source)
	}
}

func TestEditCategoryClearsRegistryLink(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	if err := session.EditField("svc-1", "category", "payments"); err != nil {
		t.Fatalf("EditField() error = %v", err)
	}

	svc := session.Projects()[0].Services[0]
	if svc.Category.Value != domain.CategoryPayments {
		t.Fatalf("expected payments category, got %s", svc.Category.Value)
	}
	if svc.RegistryID != "" {
		t.Fatalf("expected registry link cleared, got %q", svc.RegistryID)
	}
}

func TestEditFieldRejectsUnknownCategory(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	err := session.EditField("svc-1", "category", "blockchain")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAmountEditRecomputesTotal(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	// 20 monthly + 24 yearly = 22/month.
	if got := session.TotalMonthlyCost(); got != 22 {
		t.Fatalf("expected initial total 22, got %v", got)
	}

	if err := session.EditField("svc-1", "amount", 50.0); err != nil {
		t.Fatalf("EditField() error = %v", err)
	}
	if got := session.TotalMonthlyCost(); got != 52 {
		t.Fatalf("expected total 52 after edit, got %v", got)
	}

	if err := session.EditField("svc-2", "cycle", "one-time"); err != nil {
		t.Fatalf("EditField() error = %v", err)
	}
	if got := session.TotalMonthlyCost(); got != 50 {
		t.Fatalf("expected one-time charge excluded, got %v", got)
	}
}

func TestRemoveServiceRecomputesTotal(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	if err := session.Remove("svc-2"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	project := session.Projects()[0]
	if len(project.Services) != 1 {
		t.Fatalf("expected 1 service left, got %d", len(project.Services))
	}
	if project.TotalMonthlyCost != 20 {
		t.Fatalf("expected total 20, got %v", project.TotalMonthlyCost)
	}
}

func TestRemoveProjectCascades(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	if err := session.Remove("proj-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !session.Empty() {
		t.Fatalf("expected empty session after project removal")
	}
	if err := session.Remove("svc-1"); !domain.IsKind(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected orphaned service to be gone, got %v", err)
	}
}

func TestToggleConfirmIsReversible(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	if err := session.ToggleConfirm("proj-1"); err != nil {
		t.Fatalf("ToggleConfirm() error = %v", err)
	}
	if got := len(session.ConfirmedProjects()); got != 1 {
		t.Fatalf("expected 1 confirmed project, got %d", got)
	}

	if err := session.ToggleConfirm("proj-1"); err != nil {
		t.Fatalf("ToggleConfirm() error = %v", err)
	}
	if got := len(session.ConfirmedProjects()); got != 0 {
		t.Fatalf("expected confirm to be reversible, got %d confirmed", got)
	}
}

func TestMergePreservesExistingEntities(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, []string{"unknown line"})

	second := sampleProject()
	second.ID = "proj-2"
	session.Merge([]domain.ExtractedProject{second}, nil)

	if got := len(session.Projects()); got != 2 {
		t.Fatalf("expected merge to keep both projects, got %d", got)
	}
	if got := session.UnmatchedItems(); len(got) != 1 {
		t.Fatalf("expected unmatched items preserved, got %v", got)
	}
}

func TestProjectsReturnsCopies(t *testing.T) {
	session := NewReviewSession()
	session.Merge([]domain.ExtractedProject{sampleProject()}, nil)

	leaked := session.Projects()
	leaked[0].Services[0].Name.Value = "mutated"

	if got := session.Projects()[0].Services[0].Name.Value; got == "mutated" {
		t.Fatalf("store state mutated through accessor copy")
	}
}
