package model

import "time"

type CacheEntry struct {
	Key       string     `gorm:"column:cache_key;type:varchar(191);primaryKey"`
	Value     string     `gorm:"column:value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (CacheEntry) TableName() string {
	return "case_kv"
}

// All lists every model managed by schema migration.
func All() []any {
	return []any{
		&Case{},
		&AllocationLog{},
		&FormSubmission{},
		&FormSubmissionFile{},
		&QCReview{},
		&LegacySubmission{},
		&CacheEntry{},
	}
}
