package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vkarasev/stackwise/internal/core/domain"
)

type normalizerFake struct {
	failFor map[string]error
}

func (f *normalizerFake) Normalize(_ context.Context, doc *domain.UploadedDocument) (domain.NormalizedInput, error) {
	if err := f.failFor[doc.Name]; err != nil {
		return domain.NormalizedInput{}, err
	}
	return domain.NormalizedInput{
		Kind:      domain.InputText,
		Content:   string(doc.Content),
		Filename:  doc.Name,
		MediaType: doc.MediaType,
	}, nil
}

func (f *normalizerFake) Preview(*domain.UploadedDocument) string { return "" }

func TestNormalizeAllIsolatesPerFileFailures(t *testing.T) {
	fake := &normalizerFake{
		failFor: map[string]error{
			"broken.pdf": domain.WrapError(domain.ErrUnreadableFile, "normalize", errors.New("truncated stream")),
		},
	}
	batch := NewBatchNormalizer(fake, nil)

	docs := []*domain.UploadedDocument{
		{ID: "d1", Name: "invoices.csv", Content: []byte("a,b"), MediaType: "text/csv", Status: domain.DocumentPending},
		{ID: "d2", Name: "broken.pdf", MediaType: "application/pdf", Status: domain.DocumentPending},
		{ID: "d3", Name: "receipt.txt", Content: []byte("total 12"), MediaType: "text/plain", Status: domain.DocumentPending},
	}

	inputs, failures := batch.NormalizeAll(context.Background(), docs)

	if len(inputs) != 2 {
		t.Fatalf("expected 2 successes, got %d", len(inputs))
	}
	if inputs[0].Filename != "invoices.csv" || inputs[1].Filename != "receipt.txt" {
		t.Fatalf("expected input order preserved, got %q, %q", inputs[0].Filename, inputs[1].Filename)
	}
	if len(failures) != 1 || failures[0].DocumentID != "d2" {
		t.Fatalf("expected one failure for d2, got %+v", failures)
	}
	if !domain.IsKind(failures[0].Err, domain.ErrUnreadableFile) {
		t.Fatalf("expected unreadable-file kind, got %v", failures[0].Err)
	}
	for _, doc := range docs {
		if doc.Status != domain.DocumentPending {
			t.Fatalf("the batch must not touch document status, got %s for %s", doc.Status, doc.Name)
		}
	}
}

func TestNormalizeAllEmptyBatch(t *testing.T) {
	batch := NewBatchNormalizer(&normalizerFake{}, nil)
	inputs, failures := batch.NormalizeAll(context.Background(), nil)
	if len(inputs) != 0 || len(failures) != 0 {
		t.Fatalf("expected empty results, got %d inputs %d failures", len(inputs), len(failures))
	}
}
