package docnorm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"

	"github.com/vkarasev/stackwise/internal/core/domain"
	"github.com/vkarasev/stackwise/internal/observability/metrics"
)

const serviceName = "api"

const previewLimit = 240

// Normalizer converts uploaded files into extraction transport form: text
// formats travel as UTF-8 text, images and PDFs as base64 payloads. Word and
// unrecognized binary content rides the pdf channel and is classified on the
// extraction side.
type Normalizer struct {
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics
}

func New(logger *slog.Logger, pipelineMetrics *metrics.PipelineMetrics) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger, metrics: pipelineMetrics}
}

func (n *Normalizer) Normalize(ctx context.Context, doc *domain.UploadedDocument) (domain.NormalizedInput, error) {
	if err := ctx.Err(); err != nil {
		return domain.NormalizedInput{}, err
	}
	if doc == nil || len(doc.Content) == 0 {
		return domain.NormalizedInput{}, domain.WrapError(domain.ErrUnreadableFile, "normalize", fmt.Errorf("empty document"))
	}

	class := Classify(doc.Name, doc.MediaType)
	input, err := n.normalizeClass(doc, class)
	n.metrics.RecordNormalize(serviceName, string(class), err)
	if err != nil {
		return domain.NormalizedInput{}, err
	}

	n.logger.Debug("docnorm.normalized",
		"document", doc.Name,
		"class", string(class),
		"kind", string(input.Kind),
		"bytes", doc.Size,
	)
	return input, nil
}

func (n *Normalizer) normalizeClass(doc *domain.UploadedDocument, class domain.MediaClass) (domain.NormalizedInput, error) {
	switch class {
	case domain.MediaTextLike:
		return n.normalizeText(doc)
	case domain.MediaSpreadsheet:
		return n.normalizeSpreadsheet(doc)
	case domain.MediaImage:
		return encoded(doc, domain.InputImage), nil
	case domain.MediaPDF, domain.MediaWordBinary, domain.MediaUnknownBinary:
		return encoded(doc, domain.InputPDF), nil
	default:
		return encoded(doc, domain.InputPDF), nil
	}
}

func (n *Normalizer) normalizeText(doc *domain.UploadedDocument) (domain.NormalizedInput, error) {
	if !utf8.Valid(doc.Content) {
		return domain.NormalizedInput{}, domain.WrapError(domain.ErrUnreadableFile, "normalize text",
			fmt.Errorf("%s: invalid utf-8", doc.Name))
	}

	content := string(doc.Content)
	if isHTML(doc.Name, doc.MediaType) {
		text, err := htmlToText(doc.Content)
		if err != nil {
			return domain.NormalizedInput{}, domain.WrapError(domain.ErrUnreadableFile, "normalize html",
				fmt.Errorf("%s: %w", doc.Name, err))
		}
		content = text
	}

	return domain.NormalizedInput{
		Kind:      domain.InputText,
		Content:   content,
		Filename:  doc.Name,
		MediaType: doc.MediaType,
	}, nil
}

// normalizeSpreadsheet flattens every sheet into comma-separated rows so the
// workbook travels on the text channel.
func (n *Normalizer) normalizeSpreadsheet(doc *domain.UploadedDocument) (domain.NormalizedInput, error) {
	book, err := excelize.OpenReader(bytes.NewReader(doc.Content))
	if err != nil {
		return domain.NormalizedInput{}, domain.WrapError(domain.ErrUnreadableFile, "open workbook",
			fmt.Errorf("%s: %w", doc.Name, err))
	}
	defer book.Close()

	var sb strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.NormalizedInput{}, domain.WrapError(domain.ErrUnreadableFile, "read sheet",
				fmt.Errorf("%s/%s: %w", doc.Name, sheet, err))
		}
		if len(rows) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "# %s\n", sheet)
		for _, row := range rows {
			sb.WriteString(strings.Join(row, ","))
			sb.WriteByte('\n')
		}
	}

	if sb.Len() == 0 {
		return domain.NormalizedInput{}, domain.WrapError(domain.ErrUnreadableFile, "read workbook",
			fmt.Errorf("%s: no rows", doc.Name))
	}

	return domain.NormalizedInput{
		Kind:      domain.InputText,
		Content:   sb.String(),
		Filename:  doc.Name,
		MediaType: "text/csv",
	}, nil
}

// Preview returns a short display snippet; best effort, empty when the format
// has no cheap text.
func (n *Normalizer) Preview(doc *domain.UploadedDocument) string {
	if doc == nil || len(doc.Content) == 0 {
		return ""
	}
	switch Classify(doc.Name, doc.MediaType) {
	case domain.MediaTextLike:
		if !utf8.Valid(doc.Content) {
			return ""
		}
		return snippet(string(doc.Content))
	case domain.MediaPDF:
		return snippet(pdfFirstPageText(doc.Content))
	default:
		return ""
	}
}

// Classify maps a file to its media class by extension first, falling back to
// the declared media type.
func Classify(name, mediaType string) domain.MediaClass {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".txt", ".csv", ".md", ".json", ".log", ".html", ".htm":
		return domain.MediaTextLike
	case ".xlsx", ".xlsm":
		return domain.MediaSpreadsheet
	case ".pdf":
		return domain.MediaPDF
	case ".doc", ".docx":
		return domain.MediaWordBinary
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".heic":
		return domain.MediaImage
	}

	mt := strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case strings.HasPrefix(mt, "text/"), mt == "application/json":
		return domain.MediaTextLike
	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return domain.MediaSpreadsheet
	case mt == "application/pdf":
		return domain.MediaPDF
	case mt == "application/msword",
		mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return domain.MediaWordBinary
	case strings.HasPrefix(mt, "image/"):
		return domain.MediaImage
	}
	return domain.MediaUnknownBinary
}

func encoded(doc *domain.UploadedDocument, kind domain.InputKind) domain.NormalizedInput {
	return domain.NormalizedInput{
		Kind:      kind,
		Content:   base64.StdEncoding.EncodeToString(doc.Content),
		Filename:  doc.Name,
		MediaType: doc.MediaType,
	}
}

func isHTML(name, mediaType string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".html" || ext == ".htm" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(mediaType), "text/html")
}

func htmlToText(raw []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "head":
				return
			}
		}
		if node.Type == html.TextNode {
			text := strings.TrimSpace(node.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return sb.String(), nil
}

// pdfFirstPageText pulls plain text from the first page only. Malformed PDFs
// still normalize fine on the base64 channel, so every failure here is
// swallowed.
func pdfFirstPageText(content []byte) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil || reader.NumPage() == 0 {
		return ""
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return ""
	}
	out, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLimit {
		return text
	}
	cut := text[:previewLimit]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "…"
}
