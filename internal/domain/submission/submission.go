package submission

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusNone  Status = ""
	StatusDraft Status = "draft"
	StatusFinal Status = "final"
)

// MetadataKey is reserved in submission data for client bookkeeping.
const MetadataKey = "_metadata"

var (
	ErrNoFields       = errors.New("submission has no fields")
	ErrEmptyFieldKey  = errors.New("field key is required")
	ErrReservedField  = errors.New("field key is reserved")
	ErrFileHasNoBytes = errors.New("file has neither url nor content")
	ErrFileNameNeeded = errors.New("file content needs a name")
)

// Data is the stored field-key to entry mapping.
type Data map[string]any

type Submission struct {
	ID           string
	CaseID       string
	TemplateID   string
	GigPartnerID string
	Data         Data
	Status       Status
	SubmittedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Files        []File
	// Legacy is set when the view was adapted from an answers-only row.
	Legacy bool
}

func (s Submission) IsFinal() bool {
	return s.Status == StatusFinal
}

// File is a persisted attachment row.
type File struct {
	ID         string
	FieldID    string
	URL        string
	Name       string
	MimeType   string
	UploadedAt time.Time
}

// FileInput is a file as sent by a form client: either already uploaded (URL
// set) or local bytes waiting for upload.
type FileInput struct {
	URL      string
	Name     string
	MimeType string
	Content  []byte
}

func (f FileInput) Uploaded() bool {
	return f.URL != ""
}

type FieldInput struct {
	Value any
	Files []FileInput
}

// Form is an incoming draft or final payload.
type Form struct {
	TemplateID   string
	GigPartnerID string
	Fields       map[string]FieldInput
	Metadata     map[string]any
}

func (f Form) Validate() error {
	if len(f.Fields) == 0 && len(f.Metadata) == 0 {
		return ErrNoFields
	}
	for key, field := range f.Fields {
		if key == "" {
			return ErrEmptyFieldKey
		}
		if key == MetadataKey {
			return ErrReservedField
		}
		for _, file := range field.Files {
			if file.URL == "" && len(file.Content) == 0 {
				return ErrFileHasNoBytes
			}
			// Local bytes are de-duplicated by name until they have a url.
			if file.URL == "" && strings.TrimSpace(file.Name) == "" {
				return ErrFileNameNeeded
			}
		}
	}
	return nil
}

// Patch is what the reconciler writes through upsert_submission.
type Patch struct {
	TemplateID   string
	GigPartnerID string
	Data         Data
	Status       Status
	// SubmittedAt is only honoured when the row has none yet.
	SubmittedAt *time.Time
}
