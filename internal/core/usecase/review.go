package usecase

import (
	"fmt"
	"strings"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

// ReviewSession is the editable staging area between extraction and commit.
// It never performs I/O; the wizard serializes access to it (single writer).
// Accessors hand out deep copies so presentation code cannot mutate staged
// state behind the store's back.
type ReviewSession struct {
	projects  []domain.ExtractedProject
	unmatched []string
}

func NewReviewSession() *ReviewSession {
	return &ReviewSession{}
}

// Merge folds newly extracted projects into the session, preserving entities
// already under review. Used by the re-entrant "add more files" path.
func (r *ReviewSession) Merge(projects []domain.ExtractedProject, unmatched []string) {
	r.projects = append(r.projects, copyProjects(projects)...)
	r.unmatched = append(r.unmatched, unmatched...)
	r.RecomputeAggregates()
}

func (r *ReviewSession) Projects() []domain.ExtractedProject {
	return copyProjects(r.projects)
}

func (r *ReviewSession) UnmatchedItems() []string {
	return append([]string(nil), r.unmatched...)
}

func (r *ReviewSession) Empty() bool {
	return len(r.projects) == 0
}

// EditField rewrites one user-editable field on a project or service and
// forces its confidence to high: a user correction is ground truth.
func (r *ReviewSession) EditField(entityID, field string, value any) error {
	for i := range r.projects {
		if r.projects[i].ID == entityID {
			if err := editProjectField(&r.projects[i], field, value); err != nil {
				return err
			}
			r.RecomputeAggregates()
			return nil
		}
		for j := range r.projects[i].Services {
			if r.projects[i].Services[j].ID == entityID {
				if err := editServiceField(&r.projects[i].Services[j], field, value); err != nil {
					return err
				}
				r.RecomputeAggregates()
				return nil
			}
		}
	}
	return fmt.Errorf("edit field: %w: %s", domain.ErrEntityNotFound, entityID)
}

// ToggleConfirm flips a project's inclusion in the commit batch. Reversible
// until the batch is committed.
func (r *ReviewSession) ToggleConfirm(entityID string) error {
	for i := range r.projects {
		if r.projects[i].ID == entityID {
			r.projects[i].Confirmed = !r.projects[i].Confirmed
			return nil
		}
	}
	return fmt.Errorf("toggle confirm: %w: %s", domain.ErrEntityNotFound, entityID)
}

// Remove deletes a project (cascading its services) or a single service.
func (r *ReviewSession) Remove(entityID string) error {
	for i := range r.projects {
		if r.projects[i].ID == entityID {
			r.projects = append(r.projects[:i], r.projects[i+1:]...)
			r.RecomputeAggregates()
			return nil
		}
		for j := range r.projects[i].Services {
			if r.projects[i].Services[j].ID == entityID {
				svcs := r.projects[i].Services
				r.projects[i].Services = append(svcs[:j], svcs[j+1:]...)
				r.RecomputeAggregates()
				return nil
			}
		}
	}
	return fmt.Errorf("remove entity: %w: %s", domain.ErrEntityNotFound, entityID)
}

// RecomputeAggregates re-derives every project total. Called after every
// structural mutation so totals are never stale.
func (r *ReviewSession) RecomputeAggregates() {
	for i := range r.projects {
		r.projects[i].RecomputeTotal()
	}
}

func (r *ReviewSession) TotalMonthlyCost() float64 {
	total := 0.0
	for i := range r.projects {
		total += r.projects[i].TotalMonthlyCost
	}
	return total
}

func (r *ReviewSession) ConfirmedProjects() []domain.ExtractedProject {
	confirmed := make([]domain.ExtractedProject, 0, len(r.projects))
	for i := range r.projects {
		if r.projects[i].Confirmed {
			confirmed = append(confirmed, copyProject(r.projects[i]))
		}
	}
	return confirmed
}

func editProjectField(p *domain.ExtractedProject, field string, value any) error {
	switch field {
	case "name":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		p.Name.SetByUser(s)
	case "type":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		t := parseProjectType(s)
		if t == "" {
			return fmt.Errorf("edit field: %w: unknown project type %q", domain.ErrInvalidInput, s)
		}
		p.Type.SetByUser(t)
	case "icon":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		p.Icon = s
	default:
		return fmt.Errorf("edit field: %w: unknown project field %q", domain.ErrInvalidInput, field)
	}
	return nil
}

func editServiceField(svc *domain.ExtractedService, field string, value any) error {
	switch field {
	case "name":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		svc.Name.SetByUser(s)
	case "category":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c := domain.ParseCategory(s)
		if string(c) != strings.ToLower(strings.TrimSpace(s)) {
			return fmt.Errorf("edit field: %w: unknown category %q", domain.ErrInvalidInput, s)
		}
		svc.Category.SetByUser(c)
		// The registry guess no longer applies once the user overrides it.
		svc.RegistryID = ""
	case "amount":
		n, err := coerceNumber(field, value)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("edit field: %w: amount must be non-negative", domain.ErrInvalidInput)
		}
		svc.Amount.SetByUser(n)
	case "cycle", "frequency":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		svc.Cycle.SetByUser(domain.ParseBillingCycle(s))
	case "currency":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		svc.Currency.SetByUser(strings.ToUpper(strings.TrimSpace(s)))
	case "plan":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		svc.Plan = s
	case "renewal_date", "renewalDate":
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		svc.RenewalDate = s
	default:
		return fmt.Errorf("edit field: %w: unknown service field %q", domain.ErrInvalidInput, field)
	}
	return nil
}

func coerceString(field string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("edit field: %w: field %q expects a string", domain.ErrInvalidInput, field)
	}
	return strings.TrimSpace(s), nil
}

func coerceNumber(field string, value any) (float64, error) {
	switch n := value.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("edit field: %w: field %q expects a number", domain.ErrInvalidInput, field)
	}
}

func copyProjects(projects []domain.ExtractedProject) []domain.ExtractedProject {
	out := make([]domain.ExtractedProject, 0, len(projects))
	for i := range projects {
		out = append(out, copyProject(projects[i]))
	}
	return out
}

func copyProject(p domain.ExtractedProject) domain.ExtractedProject {
	clone := p
	clone.Services = make([]domain.ExtractedService, len(p.Services))
	copy(clone.Services, p.Services)
	clone.SourceDocumentIDs = append([]string(nil), p.SourceDocumentIDs...)
	for i := range clone.Services {
		clone.Services[i].SourceDocumentIDs = append([]string(nil), clone.Services[i].SourceDocumentIDs...)
	}
	return clone
}
