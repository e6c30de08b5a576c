package submission

import "time"

// LegacyAnswers is the older answers-only submission format.
type LegacyAnswers struct {
	CaseID      string
	Answers     map[string]any
	SubmittedAt *time.Time
	UpdatedAt   time.Time
}

// FromLegacy adapts an answers row to the current shape. The result is a
// read-only view: it has no id and no file rows.
func FromLegacy(legacy LegacyAnswers) Submission {
	data := make(Data, len(legacy.Answers))
	for key, answer := range legacy.Answers {
		if key == MetadataKey {
			continue
		}
		data[key] = encodeEntry(answer, nil)
	}

	status := StatusDraft
	if legacy.SubmittedAt != nil {
		status = StatusFinal
	}
	return Submission{
		CaseID:      legacy.CaseID,
		Data:        data,
		Status:      status,
		SubmittedAt: legacy.SubmittedAt,
		UpdatedAt:   legacy.UpdatedAt,
		Legacy:      true,
	}
}
