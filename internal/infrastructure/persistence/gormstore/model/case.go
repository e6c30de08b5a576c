package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Case struct {
	ID                 string              `gorm:"column:id;type:varchar(36);primaryKey"`
	CaseNumber         string              `gorm:"column:case_number;type:varchar(64);not null;uniqueIndex"`
	Status             string              `gorm:"column:status;type:varchar(32);not null;index"`
	AssigneeID         *string             `gorm:"column:current_assignee_id;type:varchar(64);index"`
	AssigneeType       *string             `gorm:"column:current_assignee_type;type:varchar(16)"`
	VendorID           *string             `gorm:"column:current_vendor_id;type:varchar(64);index"`
	AcceptanceDeadline *time.Time          `gorm:"column:acceptance_deadline;index"`
	StatusUpdatedAt    time.Time           `gorm:"column:status_updated_at;not null"`
	TATHours           int                 `gorm:"column:tat_hours;not null;default:0"`
	DueAt              *time.Time          `gorm:"column:due_at"`
	VendorTATStartDate *time.Time          `gorm:"column:vendor_tat_start_date"`
	QCResponse         *string             `gorm:"column:qc_response;type:varchar(32)"`
	IsPositive         *bool               `gorm:"column:is_positive"`
	Metadata           datatypes.JSON      `gorm:"column:metadata"`
	PayoutAmount       decimal.NullDecimal `gorm:"column:payout_amount;type:varchar(32)"`
	CreatedAt          time.Time           `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;not null"`
}

func (Case) TableName() string {
	return "cases"
}
