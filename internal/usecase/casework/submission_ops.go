package casework

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/domain/submission"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

var errNothingToAmend = errs.New(errs.KindInvalidTransition, "case has no submission to amend")

// FailedFile is an attachment that could not reach the blob store. The rest
// of the save still lands; the client may resend the file on the next save.
type FailedFile struct {
	FieldID string
	Name    string
}

type SaveSubmissionInput struct {
	CaseID string
	Actor  string
	Form   submission.Form
}

type SubmissionResult struct {
	Case       casework.Case
	Submission submission.Submission
	// Transitioned reports whether the save moved the case status.
	Transitioned bool
	FilesAdded   int
	FailedFiles  []FailedFile
	Warnings     []string
}

type saveMode int

const (
	saveDraft saveMode = iota
	saveFinal
	saveAmend
)

func (m saveMode) String() string {
	switch m {
	case saveDraft:
		return "draft"
	case saveFinal:
		return "final"
	default:
		return "amend"
	}
}

// SaveDraft merges form into the case submission as a draft. The first draft
// on an accepted case moves it to in_progress.
func (s *Service) SaveDraft(ctx context.Context, input SaveSubmissionInput) (SubmissionResult, error) {
	return s.saveSubmission(ctx, input, saveDraft)
}

// SubmitFinal merges form into the submission, finalizes it and moves the
// case to submitted in the same unit of work.
func (s *Service) SubmitFinal(ctx context.Context, input SaveSubmissionInput) (SubmissionResult, error) {
	return s.saveSubmission(ctx, input, saveFinal)
}

// AmendSubmission edits a submission after it was finalized. It never changes
// the case status, the submission status or submitted_at.
func (s *Service) AmendSubmission(ctx context.Context, input SaveSubmissionInput) (SubmissionResult, error) {
	return s.saveSubmission(ctx, input, saveAmend)
}

func (s *Service) saveSubmission(ctx context.Context, input SaveSubmissionInput, mode saveMode) (SubmissionResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return SubmissionResult{}, err
	}
	if s.subs == nil {
		return SubmissionResult{}, errors.New("submission repository is required")
	}
	caseID, err := normalizeCaseID(input.CaseID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := input.Form.Validate(); err != nil {
		return SubmissionResult{}, errs.Mark(err, errs.KindInvalidInput)
	}
	ctx = logging.WithAttrs(withCaseAttrs(ctx, caseID), slog.String("save", mode.String()))
	actor := strings.TrimSpace(input.Actor)

	current, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := checkSaveAllowed(current, mode); err != nil {
		return SubmissionResult{}, err
	}

	existing, found, err := s.subs.GetSubmission(ctx, caseID)
	if err != nil {
		return SubmissionResult{}, errs.Wrap(err, "read submission")
	}
	if mode == saveAmend && !found {
		return SubmissionResult{}, errNothingToAmend
	}
	var existingFiles []submission.File
	if found {
		existingFiles, err = s.subs.ListSubmissionFiles(ctx, existing.ID, "")
		if err != nil {
			return SubmissionResult{}, errs.Wrap(err, "list submission files")
		}
	}

	ready, pending := submission.Partition(input.Form, existingFiles)
	uploaded, failed := s.uploadPending(ctx, caseID, pending)
	for _, f := range uploaded {
		ready[f.FieldID] = append(ready[f.FieldID], f)
	}

	var (
		result SubmissionResult
		tr     transitionResult
	)
	now := s.clock()
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetCase(txCtx, caseID)
		if err != nil {
			return err
		}
		if err := checkSaveAllowed(current, mode); err != nil {
			return err
		}

		stored, found, err := s.subs.GetSubmission(txCtx, caseID)
		if err != nil {
			return errs.Wrap(err, "read submission")
		}
		var storedData submission.Data
		if found {
			storedData = stored.Data
		}
		merged := submission.Merge(storedData, input.Form, ready)

		var sub submission.Submission
		switch mode {
		case saveDraft:
			tr, err = s.writeTransition(txCtx, current, casework.Event{
				Type:  casework.EventFirstAutosave,
				Actor: actor,
				At:    now,
			}, nil)
			if err != nil {
				return err
			}
			sub, err = s.subs.UpsertSubmission(txCtx, caseID, submission.Patch{
				TemplateID:   input.Form.TemplateID,
				GigPartnerID: input.Form.GigPartnerID,
				Data:         merged,
				Status:       submission.StatusDraft,
			}, now)
		case saveFinal:
			// Template and partner are recorded first; the finalize effect
			// then writes the merged data with status final.
			if input.Form.TemplateID != "" || input.Form.GigPartnerID != "" || !found {
				if _, err := s.subs.UpsertSubmission(txCtx, caseID, submission.Patch{
					TemplateID:   input.Form.TemplateID,
					GigPartnerID: input.Form.GigPartnerID,
					Data:         merged,
				}, now); err != nil {
					return errs.Wrap(err, "upsert submission")
				}
			}
			tr, err = s.writeTransition(txCtx, current, casework.Event{
				Type:  casework.EventSubmitFinal,
				Actor: actor,
				At:    now,
			}, merged)
			if err != nil {
				return err
			}
			if tr.Submission == nil {
				return fmt.Errorf("submit_final did not finalize the submission")
			}
			sub = *tr.Submission
		case saveAmend:
			tr = transitionResult{Case: current, Transition: casework.Transition{NoOp: true}}
			sub, err = s.subs.UpsertSubmission(txCtx, caseID, submission.Patch{
				TemplateID:   input.Form.TemplateID,
				GigPartnerID: input.Form.GigPartnerID,
				Data:         merged,
			}, now)
		}
		if err != nil {
			return errs.Wrap(err, "upsert submission")
		}

		added, err := s.recordFiles(txCtx, sub.ID, ready, now)
		if err != nil {
			return err
		}
		files, err := s.subs.ListSubmissionFiles(txCtx, sub.ID, "")
		if err != nil {
			return errs.Wrap(err, "list submission files")
		}
		sub.Files = files

		result = SubmissionResult{
			Case:         tr.Case,
			Submission:   sub,
			Transitioned: !tr.Transition.NoOp,
			FilesAdded:   added,
		}
		return nil
	})
	if err != nil {
		s.logTransitionError(ctx, casework.Event{Type: saveEventType(mode)}, err)
		return SubmissionResult{}, err
	}

	if result.Transitioned {
		s.afterCommit(ctx, result.Case, tr.Transition)
	}
	if len(failed) > 0 {
		result.FailedFiles = failed
		result.Warnings = []string{casework.ErrUploadFailure.Error()}
	}
	logging.Info(ctx, "submission saved",
		slog.Int("files_added", result.FilesAdded),
		slog.Int("files_failed", len(failed)),
		slog.Bool("transitioned", result.Transitioned),
	)
	return result, nil
}

// checkSaveAllowed rejects saves the current status cannot take. Statuses past
// the save window mean the case moved on and are reported as stale.
func checkSaveAllowed(c casework.Case, mode saveMode) error {
	if c.Status.IsTerminal() {
		return fmt.Errorf("%w: %s not allowed on %s case", casework.ErrInvalidTransition, mode, c.Status)
	}
	if mode == saveAmend {
		return nil
	}
	switch {
	case c.Status == casework.StatusAccepted, c.Status == casework.StatusInProgress:
		return nil
	case c.Status.AtOrAfter(casework.StatusSubmitted):
		return fmt.Errorf("%w: %s on %s case", casework.ErrStaleState, mode, c.Status)
	default:
		return fmt.Errorf("%w: %s not allowed from %s", casework.ErrInvalidTransition, mode, c.Status)
	}
}

func (s *Service) uploadPending(ctx context.Context, caseID string, pending []submission.PendingUpload) ([]submission.File, []FailedFile) {
	uploaded := make([]submission.File, 0, len(pending))
	var failed []FailedFile
	for _, p := range pending {
		if s.blob == nil {
			failed = append(failed, FailedFile{FieldID: p.FieldID, Name: p.File.Name})
			logging.Warn(ctx, "file dropped, no blob store configured",
				slog.String("field_id", p.FieldID),
				slog.String("file_name", p.File.Name),
			)
			continue
		}
		url, err := s.blob.Put(ctx, ports.BlobObject{
			Key:         s.blobKey(caseID, p.FieldID, p.File.Name),
			ContentType: p.File.MimeType,
			Size:        int64(len(p.File.Content)),
			Body:        bytes.NewReader(p.File.Content),
		})
		if err != nil {
			failed = append(failed, FailedFile{FieldID: p.FieldID, Name: p.File.Name})
			logging.Warn(ctx, "file upload failed",
				slog.String("field_id", p.FieldID),
				slog.String("file_name", p.File.Name),
				slog.Any("err", errs.Loggable(errs.Mark(err, errs.KindUploadFailure))),
			)
			continue
		}
		uploaded = append(uploaded, p.Resolved(url))
	}
	return uploaded, failed
}

// recordFiles inserts file rows, skipping ones the submission already holds.
func (s *Service) recordFiles(ctx context.Context, submissionID string, files map[string][]submission.File, now time.Time) (int, error) {
	added := 0
	for _, fieldID := range sortedKeys(files) {
		for _, f := range files[fieldID] {
			inserted, err := s.subs.InsertSubmissionFileIfAbsent(ctx, ports.SubmissionFileCreate{
				SubmissionID: submissionID,
				FieldID:      fieldID,
				URL:          f.URL,
				Name:         f.Name,
				MimeType:     f.MimeType,
				UploadedAt:   now,
			})
			if err != nil {
				return added, errs.Wrap(err, "insert submission file")
			}
			if inserted {
				added++
			}
		}
	}
	return added, nil
}

// ChooseCaseType records whether the worker fills the positive or negative
// form variant. It is only accepted before the case is submitted.
func (s *Service) ChooseCaseType(ctx context.Context, caseID string, isPositive bool) (casework.Case, error) {
	if err := s.checkReady(ctx); err != nil {
		return casework.Case{}, err
	}
	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return casework.Case{}, err
	}
	ctx = withCaseAttrs(ctx, caseID)

	var updated casework.Case
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetCase(txCtx, caseID)
		if err != nil {
			return err
		}
		if err := checkSaveAllowed(current, saveDraft); err != nil {
			return err
		}
		ok, err := s.repo.SetCaseType(txCtx, caseID, []casework.Status{casework.StatusAccepted, casework.StatusInProgress}, isPositive, s.clock())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: case type on %s case", casework.ErrStaleState, current.Status)
		}
		updated, err = s.repo.GetCase(txCtx, caseID)
		return err
	})
	if err != nil {
		return casework.Case{}, err
	}
	logging.Info(ctx, "case type chosen", slog.Bool("is_positive", isPositive))
	return updated, nil
}

func saveEventType(mode saveMode) casework.EventType {
	switch mode {
	case saveDraft:
		return casework.EventFirstAutosave
	case saveFinal:
		return casework.EventSubmitFinal
	default:
		return "amend_submission"
	}
}

func sortedKeys(m map[string][]submission.File) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
