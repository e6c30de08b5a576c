package model

import (
	"time"

	"gorm.io/datatypes"
)

type QCReview struct {
	ID                 string         `gorm:"column:id;type:varchar(36);primaryKey"`
	CaseID             string         `gorm:"column:case_id;type:varchar(36);not null;index"`
	ReviewerID         string         `gorm:"column:reviewer_id;type:varchar(64);not null"`
	ReviewedAt         time.Time      `gorm:"column:reviewed_at;not null;index"`
	Result             string         `gorm:"column:result;type:varchar(16);not null"`
	Comments           string         `gorm:"column:comments;type:text;not null"`
	IssuesFound        datatypes.JSON `gorm:"column:issues_found"`
	ReworkInstructions string         `gorm:"column:rework_instructions;type:text;not null"`
	ReworkDeadline     *time.Time     `gorm:"column:rework_deadline"`
}

func (QCReview) TableName() string {
	return "qc_reviews"
}
