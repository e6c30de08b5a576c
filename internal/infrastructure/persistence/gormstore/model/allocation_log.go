package model

import "time"

// AllocationLog rows are append-only. OpenCaseID mirrors CaseID while the row
// is undecided and is NULL afterwards; its unique index keeps one open row per case.
type AllocationLog struct {
	ID                 string     `gorm:"column:id;type:varchar(36);primaryKey"`
	CaseID             string     `gorm:"column:case_id;type:varchar(36);not null;index"`
	OpenCaseID         *string    `gorm:"column:open_case_id;type:varchar(36);uniqueIndex"`
	AssigneeID         string     `gorm:"column:assignee_id;type:varchar(64);not null"`
	AssigneeType       string     `gorm:"column:assignee_type;type:varchar(16);not null"`
	VendorID           *string    `gorm:"column:vendor_id;type:varchar(64)"`
	AllocatedAt        time.Time  `gorm:"column:allocated_at;not null"`
	AcceptedAt         *time.Time `gorm:"column:accepted_at"`
	Decision           string     `gorm:"column:decision;type:varchar(16);not null"`
	DecisionAt         *time.Time `gorm:"column:decision_at"`
	ReallocationReason string     `gorm:"column:reallocation_reason;type:text;not null"`
}

func (AllocationLog) TableName() string {
	return "allocation_logs"
}
