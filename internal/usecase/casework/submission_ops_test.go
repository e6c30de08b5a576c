package casework

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"caseflow/internal/domain/casework"
	"caseflow/internal/domain/submission"
	"caseflow/internal/errs"
	"caseflow/internal/infrastructure/persistence/gormstore/model"
	"caseflow/internal/ports"
)

func formWithValue(field string, value any) submission.Form {
	return submission.Form{
		TemplateID: "tpl-address",
		Fields:     map[string]submission.FieldInput{field: {Value: value}},
	}
}

func TestSaveDraftMovesAcceptedCaseAndAddsOnlyNewFile(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.acceptedCase(t, "BGV-50")

	seeded, err := env.subs.UpsertSubmission(ctx, c.ID, submission.Patch{
		Data: submission.Data{"photo": map[string]any{
			"value": "front",
			"files": []any{map[string]any{"url": "https://blob.test/a.jpg", "name": "a.jpg"}},
		}},
		Status: submission.StatusDraft,
	}, t0)
	if err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	if _, err := env.subs.InsertSubmissionFileIfAbsent(ctx, ports.SubmissionFileCreate{
		SubmissionID: seeded.ID, FieldID: "photo", URL: "https://blob.test/a.jpg", Name: "a.jpg", UploadedAt: t0,
	}); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	before, _ := env.subs.ListSubmissionFiles(ctx, seeded.ID, "photo")

	env.clock.Set(t0.Add(5 * time.Minute))
	res, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{
		CaseID: c.ID,
		Actor:  "gig-7",
		Form: submission.Form{Fields: map[string]submission.FieldInput{
			"photo": {Value: "front", Files: []submission.FileInput{
				{URL: "https://blob.test/a.jpg", Name: "a.jpg"},
				{Name: "b.jpg", MimeType: "image/jpeg", Content: []byte("jpeg bytes")},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}

	if res.Case.Status != casework.StatusInProgress || !res.Transitioned {
		t.Fatalf("SaveDraft() case = %#v transitioned=%v", res.Case, res.Transitioned)
	}
	if res.FilesAdded != 1 || env.blob.count() != 1 {
		t.Fatalf("FilesAdded = %d, uploads = %d", res.FilesAdded, env.blob.count())
	}
	files, _ := env.subs.ListSubmissionFiles(ctx, seeded.ID, "photo")
	if len(files) != 2 {
		t.Fatalf("files = %#v", files)
	}
	if files[0].ID != before[0].ID || files[0].URL != "https://blob.test/a.jpg" {
		t.Fatalf("existing file changed: %#v", files[0])
	}
	if res.Submission.Status != submission.StatusDraft || res.Submission.SubmittedAt != nil {
		t.Fatalf("submission = %#v", res.Submission)
	}
	photo := res.Submission.Data.Fields()["photo"]
	if len(photo.Files) != 2 {
		t.Fatalf("photo entry files = %#v", photo.Files)
	}

	stored, _ := env.svc.GetCase(ctx, c.ID)
	if stored.Status != casework.StatusInProgress {
		t.Fatalf("stored status = %q", stored.Status)
	}
	events := env.publisher.events()
	if events[len(events)-1] != casework.EventFirstAutosave {
		t.Fatalf("published = %v", events)
	}
}

func TestRepeatedAutosaveIsIdempotent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.acceptedCase(t, "BGV-51")

	form := submission.Form{Fields: map[string]submission.FieldInput{
		"remarks": {Value: "met the neighbour"},
		"photo":   {Value: "gate", Files: []submission.FileInput{{Name: "gate.jpg", Content: []byte("jpeg")}}},
	}}
	first, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: form})
	if err != nil {
		t.Fatalf("first SaveDraft() error = %v", err)
	}
	second, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: form})
	if err != nil {
		t.Fatalf("second SaveDraft() error = %v", err)
	}

	if first.FilesAdded != 1 || second.FilesAdded != 0 {
		t.Fatalf("FilesAdded = %d then %d", first.FilesAdded, second.FilesAdded)
	}
	if env.blob.count() != 1 {
		t.Fatalf("uploads = %d, want the unchanged file uploaded once", env.blob.count())
	}
	if second.Transitioned {
		t.Fatalf("second save must not transition")
	}
	a, _ := json.Marshal(first.Submission.Data)
	b, _ := json.Marshal(second.Submission.Data)
	if string(a) != string(b) {
		t.Fatalf("submission data changed:\n%s\n%s", a, b)
	}
	if len(second.Submission.Files) != 1 {
		t.Fatalf("files = %#v", second.Submission.Files)
	}
}

func TestAutosaveOfNamelessFileNeverUploads(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.acceptedCase(t, "BGV-55")

	form := submission.Form{Fields: map[string]submission.FieldInput{
		"photo": {Files: []submission.FileInput{{Content: []byte("jpeg")}}},
	}}
	for i := 0; i < 2; i++ {
		_, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: form})
		if !errors.Is(err, submission.ErrFileNameNeeded) || !errs.IsKind(err, errs.KindInvalidInput) {
			t.Fatalf("SaveDraft() #%d error = %v", i+1, err)
		}
	}
	if env.blob.count() != 0 {
		t.Fatalf("uploads = %d", env.blob.count())
	}
	var rows int64
	if err := env.db.Model(&model.FormSubmissionFile{}).Count(&rows).Error; err != nil {
		t.Fatalf("count files: %v", err)
	}
	if rows != 0 {
		t.Fatalf("file rows = %d", rows)
	}
}

func TestSaveDraftUploadFailureKeepsAnswers(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.acceptedCase(t, "BGV-52")
	env.blob.fail["broken.pdf"] = true

	res, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: submission.Form{Fields: map[string]submission.FieldInput{
		"report": {Value: "see attachments", Files: []submission.FileInput{
			{Name: "ok.pdf", Content: []byte("%PDF")},
			{Name: "broken.pdf", Content: []byte("%PDF")},
		}},
	}}})
	if err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != casework.ErrUploadFailure.Error() {
		t.Fatalf("Warnings = %v", res.Warnings)
	}
	if len(res.FailedFiles) != 1 || res.FailedFiles[0].Name != "broken.pdf" {
		t.Fatalf("FailedFiles = %#v", res.FailedFiles)
	}
	entry := res.Submission.Data.Fields()["report"]
	if entry.Value != "see attachments" || len(entry.Files) != 1 || entry.Files[0].Name != "ok.pdf" {
		t.Fatalf("report entry = %#v", entry)
	}

	// the client resends the failed file on the next autosave
	delete(env.blob.fail, "broken.pdf")
	resent, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: submission.Form{Fields: map[string]submission.FieldInput{
		"report": {Value: "see attachments", Files: []submission.FileInput{{Name: "broken.pdf", Content: []byte("%PDF")}}},
	}}})
	if err != nil {
		t.Fatalf("resent SaveDraft() error = %v", err)
	}
	if resent.FilesAdded != 1 || len(resent.Submission.Files) != 2 {
		t.Fatalf("resent = added %d files %#v", resent.FilesAdded, resent.Submission.Files)
	}
}

func TestSubmitFinalOnPendingAllocationIsInvalid(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.createCase(t, "BGV-53")
	if _, err := env.svc.Allocate(ctx, AllocateInput{CaseID: c.ID, Assignee: vendorGig()}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if _, err := env.svc.Reject(ctx, c.ID, "", "busy"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	_, err := env.svc.SubmitFinal(ctx, SaveSubmissionInput{CaseID: c.ID, Form: formWithValue("address", "x")})
	if !errors.Is(err, casework.ErrInvalidTransition) || errs.KindOf(err) != errs.KindInvalidTransition {
		t.Fatalf("SubmitFinal() error = %v", err)
	}
	stored, _ := env.svc.GetCase(ctx, c.ID)
	if stored.Status != casework.StatusPendingAllocation {
		t.Fatalf("status = %q", stored.Status)
	}
	if _, found, _ := env.subs.GetSubmission(ctx, c.ID); found {
		t.Fatalf("rejected submit must not create a submission")
	}
}

func TestSubmittedAtIsMonotonic(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.acceptedCase(t, "BGV-54")

	env.clock.Set(t0.Add(time.Hour))
	final, err := env.svc.SubmitFinal(ctx, SaveSubmissionInput{CaseID: c.ID, Form: formWithValue("address", "12 Main St")})
	if err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}
	if final.Submission.Status != submission.StatusFinal || final.Submission.SubmittedAt == nil {
		t.Fatalf("SubmitFinal() submission = %#v", final.Submission)
	}
	submittedAt := *final.Submission.SubmittedAt
	if !submittedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("submitted_at = %s", submittedAt)
	}

	env.clock.Set(t0.Add(3 * time.Hour))
	amended, err := env.svc.AmendSubmission(ctx, SaveSubmissionInput{CaseID: c.ID, Actor: "qc-1", Form: formWithValue("address", "12 Main Street")})
	if err != nil {
		t.Fatalf("AmendSubmission() error = %v", err)
	}
	if amended.Transitioned || amended.Case.Status != casework.StatusSubmitted {
		t.Fatalf("AmendSubmission() case = %#v", amended.Case)
	}
	if amended.Submission.Status != submission.StatusFinal || !amended.Submission.SubmittedAt.Equal(submittedAt) {
		t.Fatalf("amended submission = %#v", amended.Submission)
	}
	if amended.Submission.Data.Fields()["address"].Value != "12 Main Street" {
		t.Fatalf("amended data = %#v", amended.Submission.Data)
	}

	if _, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: formWithValue("address", "late")}); !errors.Is(err, casework.ErrStaleState) {
		t.Fatalf("SaveDraft() on submitted case error = %v", err)
	}
	if _, err := env.svc.SubmitFinal(ctx, SaveSubmissionInput{CaseID: c.ID, Form: formWithValue("address", "again")}); !errors.Is(err, casework.ErrStaleState) {
		t.Fatalf("second SubmitFinal() error = %v", err)
	}
}

func TestReworkDraftKeepsSubmittedAt(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := submittedCase(t, env, "BGV-55")

	env.clock.Set(t0.Add(time.Hour))
	if _, err := env.svc.QcDecide(ctx, QcDecideInput{CaseID: c.ID, ReviewerID: "qc-1", Result: "rework"}); err != nil {
		t.Fatalf("QcDecide() error = %v", err)
	}
	if _, err := env.svc.ReworkReassign(ctx, ReworkReassignInput{CaseID: c.ID, Assignee: vendorGig()}); err != nil {
		t.Fatalf("ReworkReassign() error = %v", err)
	}
	env.clock.Set(t0.Add(90 * time.Minute))
	res, err := env.svc.SaveDraft(ctx, SaveSubmissionInput{CaseID: c.ID, Form: formWithValue("address", "corrected")})
	if err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}
	if res.Submission.SubmittedAt == nil || !res.Submission.SubmittedAt.Equal(t0) {
		t.Fatalf("submitted_at = %v", res.Submission.SubmittedAt)
	}
	if res.Case.Status != casework.StatusInProgress {
		t.Fatalf("status = %q", res.Case.Status)
	}
}

func TestAmendWithoutSubmission(t *testing.T) {
	env := setupService(t)
	c := env.acceptedCase(t, "BGV-56")
	_, err := env.svc.AmendSubmission(context.Background(), SaveSubmissionInput{CaseID: c.ID, Form: formWithValue("a", 1)})
	if !errors.Is(err, errNothingToAmend) {
		t.Fatalf("AmendSubmission() error = %v", err)
	}
}

func TestSaveDraftRejectsEmptyForm(t *testing.T) {
	env := setupService(t)
	c := env.acceptedCase(t, "BGV-57")
	_, err := env.svc.SaveDraft(context.Background(), SaveSubmissionInput{CaseID: c.ID})
	if !errors.Is(err, submission.ErrNoFields) || errs.KindOf(err) != errs.KindInvalidInput {
		t.Fatalf("SaveDraft() error = %v", err)
	}
}

func TestChooseCaseType(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	fresh := env.createCase(t, "BGV-58")
	if _, err := env.svc.ChooseCaseType(ctx, fresh.ID, true); !errors.Is(err, casework.ErrInvalidTransition) {
		t.Fatalf("ChooseCaseType() on new case error = %v", err)
	}

	c := env.acceptedCase(t, "BGV-59")
	updated, err := env.svc.ChooseCaseType(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("ChooseCaseType() error = %v", err)
	}
	if updated.IsPositive == nil || *updated.IsPositive {
		t.Fatalf("IsPositive = %v", updated.IsPositive)
	}
}

func TestGetSubmissionDedupesAndFallsBackToLegacy(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := env.acceptedCase(t, "BGV-60")
	sub, err := env.subs.UpsertSubmission(ctx, c.ID, submission.Patch{Data: submission.Data{}, Status: submission.StatusDraft}, t0)
	if err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	for _, name := range []string{"scan.pdf", "scan-copy.pdf"} {
		if _, err := env.subs.InsertSubmissionFileIfAbsent(ctx, ports.SubmissionFileCreate{
			SubmissionID: sub.ID, FieldID: "doc", URL: "https://blob.test/scan.pdf", Name: name, UploadedAt: t0,
		}); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}
	view, err := env.svc.GetSubmission(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetSubmission() error = %v", err)
	}
	if len(view.Files) != 1 || view.Legacy {
		t.Fatalf("GetSubmission() = %#v", view)
	}

	legacyCase := env.createCase(t, "BGV-61")
	submittedAt := t0.Add(-24 * time.Hour)
	if err := env.db.Create(&model.LegacySubmission{
		CaseID:      legacyCase.ID,
		Answers:     datatypes.JSON(`{"q1":"yes","q2":4}`),
		SubmittedAt: &submittedAt,
		UpdatedAt:   submittedAt,
	}).Error; err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	legacy, err := env.svc.GetSubmission(ctx, legacyCase.ID)
	if err != nil {
		t.Fatalf("GetSubmission() legacy error = %v", err)
	}
	if !legacy.Legacy || legacy.Status != submission.StatusFinal || legacy.Data.Fields()["q1"].Value != "yes" {
		t.Fatalf("legacy view = %#v", legacy)
	}

	empty := env.createCase(t, "BGV-62")
	if _, err := env.svc.GetSubmission(ctx, empty.ID); errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("GetSubmission() empty error = %v", err)
	}
	if _, err := env.svc.GetSubmission(ctx, "missing"); !errors.Is(err, casework.ErrCaseNotFound) {
		t.Fatalf("GetSubmission() missing error = %v", err)
	}
}
