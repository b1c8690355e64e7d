package domain

import "time"

type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentProcessed DocumentStatus = "processed"
	DocumentFailed    DocumentStatus = "failed"
)

// MediaClass is the normalizer's classification of an uploaded file.
type MediaClass string

const (
	MediaTextLike      MediaClass = "text"
	MediaSpreadsheet   MediaClass = "spreadsheet"
	MediaPDF           MediaClass = "pdf"
	MediaWordBinary    MediaClass = "word"
	MediaImage         MediaClass = "image"
	MediaUnknownBinary MediaClass = "binary"
)

// UploadedDocument is a user-supplied file pending normalization. Content is
// owned by the document until it is handed off; ReleaseContent drops content
// and preview exactly once, on removal or after successful processing.
type UploadedDocument struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Size      int64          `json:"size"`
	MediaType string         `json:"media_type"`
	Content   []byte         `json:"-"`
	Preview   string         `json:"preview,omitempty"`
	Status    DocumentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`

	released bool
}

func (d *UploadedDocument) ReleaseContent() {
	if d.released {
		return
	}
	d.released = true
	d.Content = nil
	d.Preview = ""
}

func (d *UploadedDocument) Released() bool { return d.released }

// InputKind is the transport variant accepted by the extraction service.
type InputKind string

const (
	InputText  InputKind = "text"
	InputImage InputKind = "image"
	InputPDF   InputKind = "pdf"
)

// NormalizedInput is the transport-ready form of one document: UTF-8 text for
// the text variant, base64-encoded bytes for image and pdf. Word and unknown
// binary content travels on the pdf channel.
type NormalizedInput struct {
	Kind      InputKind `json:"type"`
	Content   string    `json:"content"`
	Filename  string    `json:"filename"`
	MediaType string    `json:"mimeType"`
}
