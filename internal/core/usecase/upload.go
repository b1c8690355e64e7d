package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/core/ports"
)

// FileError is a per-file normalization failure; the batch continues past it.
type FileError struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Err        error  `json:"-"`
	Message    string `json:"message"`
}

// BatchNormalizer fans one normalization task out per document and joins the
// results before the extraction call. A single unreadable file never blocks
// the rest of the batch.
type BatchNormalizer struct {
	normalizer ports.DocumentNormalizer
	logger     *slog.Logger
}

func NewBatchNormalizer(normalizer ports.DocumentNormalizer, logger *slog.Logger) *BatchNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchNormalizer{normalizer: normalizer, logger: logger}
}

// NormalizeAll returns the successful inputs in document order plus the
// per-file errors for the rest. The caller decides whether a partial set is
// worth sending. Documents are never mutated here: status changes belong to
// the session's single writer, which applies them under its own lock.
func (b *BatchNormalizer) NormalizeAll(ctx context.Context, docs []*domain.UploadedDocument) ([]domain.NormalizedInput, []FileError) {
	type slot struct {
		input domain.NormalizedInput
		err   error
	}
	slots := make([]slot, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(idx int, d *domain.UploadedDocument) {
			defer wg.Done()
			input, err := b.normalizer.Normalize(ctx, d)
			slots[idx] = slot{input: input, err: err}
		}(i, doc)
	}
	wg.Wait()

	inputs := make([]domain.NormalizedInput, 0, len(docs))
	var failures []FileError
	for i, s := range slots {
		if s.err != nil {
			b.logger.Warn("normalize.file_failed", "document", docs[i].Name, "error", s.err)
			failures = append(failures, FileError{
				DocumentID: docs[i].ID,
				Name:       docs[i].Name,
				Err:        s.err,
				Message:    domain.UserMessage(s.err),
			})
			continue
		}
		inputs = append(inputs, s.input)
	}
	return inputs, failures
}
