package model

import (
	"time"

	"gorm.io/datatypes"
)

type FormSubmission struct {
	ID             string         `gorm:"column:id;type:varchar(36);primaryKey"`
	CaseID         string         `gorm:"column:case_id;type:varchar(36);not null;uniqueIndex"`
	TemplateID     string         `gorm:"column:template_id;type:varchar(64);not null;default:''"`
	GigPartnerID   string         `gorm:"column:gig_partner_id;type:varchar(64);not null;default:''"`
	SubmissionData datatypes.JSON `gorm:"column:submission_data"`
	Status         *string        `gorm:"column:status;type:varchar(16)"`
	SubmittedAt    *time.Time     `gorm:"column:submitted_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (FormSubmission) TableName() string {
	return "form_submissions"
}

type FormSubmissionFile struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey"`
	SubmissionID string    `gorm:"column:submission_id;type:varchar(36);not null;uniqueIndex:uq_submission_file,priority:1"`
	FieldID      string    `gorm:"column:field_id;type:varchar(128);not null;uniqueIndex:uq_submission_file,priority:2"`
	DedupeKey    string    `gorm:"column:dedupe_key;type:varchar(512);not null;uniqueIndex:uq_submission_file,priority:3"`
	FileURL      string    `gorm:"column:file_url;type:text;not null"`
	FileName     string    `gorm:"column:file_name;type:varchar(255);not null;default:''"`
	MimeType     string    `gorm:"column:mime_type;type:varchar(128);not null;default:''"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;not null"`
}

func (FormSubmissionFile) TableName() string {
	return "form_submission_files"
}

// LegacySubmission is the answers-only format written by older clients. It is never written here.
type LegacySubmission struct {
	CaseID      string         `gorm:"column:case_id;type:varchar(36);primaryKey"`
	Answers     datatypes.JSON `gorm:"column:answers"`
	SubmittedAt *time.Time     `gorm:"column:submitted_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (LegacySubmission) TableName() string {
	return "legacy_submissions"
}
