package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
	caseusecase "caseflow/internal/usecase/casework"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create, inspect and move verification cases",
}

var caseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a case in status new",
	RunE: withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		number, _ := cmd.Flags().GetString("number")
		tatHours, _ := cmd.Flags().GetInt("tat-hours")
		dueRaw, _ := cmd.Flags().GetString("due")
		input := caseusecase.CreateCaseInput{CaseNumber: number, TATHours: tatHours}
		if strings.TrimSpace(dueRaw) != "" {
			due, err := time.Parse(time.RFC3339, dueRaw)
			if err != nil {
				return errs.Wrapf(err, "parse --due %q", dueRaw)
			}
			input.DueAt = &due
		}

		c, err := rt.Cases.CreateCase(ctx, input)
		if err != nil {
			logging.Error(ctx, "create case failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create case")
		}
		return printCase(cmd.OutOrStdout(), "created", c)
	}),
}

var caseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a case with its allocation history and QC reviews",
	RunE: withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		caseID, _ := cmd.Flags().GetString("case")
		detail, err := rt.Cases.GetCaseDetail(ctx, caseID)
		if err != nil {
			return errs.Wrap(err, "show case")
		}
		return printDetail(cmd.OutOrStdout(), detail)
	}),
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	RunE: withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rawStatuses, _ := cmd.Flags().GetStringSlice("status")
		assignee, _ := cmd.Flags().GetString("assignee")
		vendor, _ := cmd.Flags().GetString("vendor")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := ports.CaseFilter{AssigneeID: assignee, VendorID: vendor, Limit: limit}
		for _, raw := range rawStatuses {
			status, err := casework.ParseStatus(raw)
			if err != nil {
				return err
			}
			filter.Statuses = append(filter.Statuses, status)
		}

		cases, err := rt.Cases.ListCases(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list cases")
		}
		for _, c := range cases {
			if err := printCase(cmd.OutOrStdout(), "", c); err != nil {
				return err
			}
		}
		return nil
	}),
}

var caseAllocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Assign a case to a vendor or gig worker",
	RunE: caseEvent("allocate", func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		assignee, err := assigneeFromFlags(cmd)
		if err != nil {
			return casework.Case{}, err
		}
		reason, _ := cmd.Flags().GetString("reason")
		return rt.Cases.Allocate(ctx, caseusecase.AllocateInput{CaseID: caseID, Actor: actor, Assignee: assignee, Reason: reason})
	}),
}

var caseAcceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Accept an allocated case",
	RunE: caseEvent("accept", func(ctx context.Context, _ *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		return rt.Cases.Accept(ctx, caseID, actor)
	}),
}

var caseRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Reject an allocated case",
	RunE: caseEvent("reject", func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return rt.Cases.Reject(ctx, caseID, actor, reason)
	}),
}

var caseQCCmd = &cobra.Command{
	Use:   "qc",
	Short: "Record a QC decision (pass, reject, rework)",
	RunE: caseEvent("qc_decide", func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		result, _ := cmd.Flags().GetString("result")
		comments, _ := cmd.Flags().GetString("comments")
		issues, _ := cmd.Flags().GetStringSlice("issue")
		instructions, _ := cmd.Flags().GetString("instructions")
		return rt.Cases.QcDecide(ctx, caseusecase.QcDecideInput{
			CaseID:     caseID,
			ReviewerID: actor,
			Result:     result,
			Details: casework.QCDetails{
				Comments:           comments,
				IssuesFound:        issues,
				ReworkInstructions: instructions,
			},
		})
	}),
}

var caseReworkReassignCmd = &cobra.Command{
	Use:   "rework-reassign",
	Short: "Hand a case in rework to a worker",
	RunE: caseEvent("rework_reassign", func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		assignee, err := assigneeFromFlags(cmd)
		if err != nil {
			return casework.Case{}, err
		}
		return rt.Cases.ReworkReassign(ctx, caseusecase.ReworkReassignInput{CaseID: caseID, Actor: actor, Assignee: assignee})
	}),
}

var caseReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Mark a QC passed case as reported",
	RunE: caseEvent("report", func(ctx context.Context, _ *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		return rt.Cases.Report(ctx, caseID, actor)
	}),
}

var caseEnterPaymentCmd = &cobra.Command{
	Use:   "enter-payment",
	Short: "Move a reported case into the payment cycle",
	RunE: caseEvent("enter_payment_cycle", func(ctx context.Context, _ *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		return rt.Cases.EnterPaymentCycle(ctx, caseID, actor)
	}),
}

var caseCompletePaymentCmd = &cobra.Command{
	Use:   "complete-payment",
	Short: "Complete payment, optionally recording the payout amount",
	RunE: caseEvent("complete_payment", func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		raw, _ := cmd.Flags().GetString("amount")
		var payout caseusecase.PayoutFunc
		if strings.TrimSpace(raw) != "" {
			amount, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return casework.Case{}, errs.Mark(errs.Wrapf(err, "parse --amount %q", raw), errs.KindInvalidInput)
			}
			payout = func(context.Context, casework.Case) (decimal.Decimal, error) { return amount, nil }
		}
		return rt.Cases.CompletePayment(ctx, caseID, actor, payout)
	}),
}

var caseCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a case that has not finished",
	RunE: caseEvent("cancel", func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return rt.Cases.Cancel(ctx, caseID, actor, reason)
	}),
}

type caseEventFunc func(ctx context.Context, cmd *cobra.Command, rt *runtime, caseID string, actor string) (casework.Case, error)

// caseEvent wraps the shared --case/--actor handling of the event commands.
func caseEvent(event string, fn caseEventFunc) func(cmd *cobra.Command, args []string) error {
	return withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		caseID, _ := cmd.Flags().GetString("case")
		actor, _ := cmd.Flags().GetString("actor")
		c, err := fn(ctx, cmd, rt, caseID, actor)
		if err != nil {
			logging.Warn(ctx, "case event failed",
				slog.String("event", event),
				slog.String("case_id", caseID),
				slog.String("kind", string(errs.KindOf(err))),
			)
			return errs.Wrapf(err, "case %s", event)
		}
		return printCase(cmd.OutOrStdout(), event, c)
	})
}

func assigneeFromFlags(cmd *cobra.Command) (casework.Assignee, error) {
	id, _ := cmd.Flags().GetString("assignee")
	assigneeType, _ := cmd.Flags().GetString("assignee-type")
	vendor, _ := cmd.Flags().GetString("vendor")
	return casework.NewAssignee(id, assigneeType, vendor)
}

func printCase(w io.Writer, prefix string, c casework.Case) error {
	assignee := "-"
	if c.Assignee != nil {
		assignee = fmt.Sprintf("%s:%s", c.Assignee.Type, c.Assignee.ID)
		if c.Assignee.VendorID != "" && c.Assignee.VendorID != c.Assignee.ID {
			assignee += "@" + c.Assignee.VendorID
		}
	}
	line := fmt.Sprintf("case=%s id=%s status=%s assignee=%s", c.CaseNumber, c.ID, c.Status, assignee)
	if c.AcceptanceDeadline != nil {
		line += " acceptance_deadline=" + c.AcceptanceDeadline.Format(time.RFC3339)
	}
	if casework.IsReworkPath(c) {
		line += " rework=true"
	}
	if c.PayoutAmount != nil {
		line += " payout=" + c.PayoutAmount.String()
	}
	if prefix != "" {
		line = prefix + ": " + line
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return errs.Wrap(err, "write case output")
	}
	return nil
}

func printDetail(w io.Writer, d caseusecase.CaseDetail) error {
	if err := printCase(w, "", d.Case); err != nil {
		return err
	}
	var b strings.Builder
	allowed := make([]string, 0, len(d.Allowed))
	for _, ev := range d.Allowed {
		allowed = append(allowed, string(ev))
	}
	fmt.Fprintf(&b, "allowed: %s\n", strings.Join(allowed, ","))
	b.WriteString("allocations:\n")
	for _, l := range d.AllocationLogs {
		fmt.Fprintf(&b, "  %s %s:%s decision=%s", l.AllocatedAt.Format(time.RFC3339), l.Assignee.Type, l.Assignee.ID, l.Decision)
		if l.ReallocationReason != "" {
			fmt.Fprintf(&b, " reason=%s", l.ReallocationReason)
		}
		b.WriteString("\n")
	}
	b.WriteString("qc reviews:\n")
	for _, r := range d.QCReviews {
		fmt.Fprintf(&b, "  %s %s by %s", r.ReviewedAt.Format(time.RFC3339), r.Result, r.ReviewerID)
		if r.ReworkDeadline != nil {
			fmt.Fprintf(&b, " rework_deadline=%s", r.ReworkDeadline.Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return errs.Wrap(err, "write case detail")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(caseCmd)

	caseCmd.AddCommand(caseCreateCmd)
	caseCreateCmd.Flags().String("number", "", "Case number")
	caseCreateCmd.Flags().Int("tat-hours", 72, "Turnaround time in hours")
	caseCreateCmd.Flags().String("due", "", "Due time (RFC3339)")
	_ = caseCreateCmd.MarkFlagRequired("number")

	caseCmd.AddCommand(caseListCmd)
	caseListCmd.Flags().StringSlice("status", nil, "Status filter (repeatable)")
	caseListCmd.Flags().String("assignee", "", "Assignee id filter")
	caseListCmd.Flags().String("vendor", "", "Vendor id filter")
	caseListCmd.Flags().Int("limit", 50, "Maximum number of cases")

	caseCmd.AddCommand(caseShowCmd)
	caseShowCmd.Flags().String("case", "", "Case id")
	_ = caseShowCmd.MarkFlagRequired("case")

	eventCmds := []*cobra.Command{
		caseAllocateCmd, caseAcceptCmd, caseRejectCmd, caseQCCmd, caseReworkReassignCmd,
		caseReportCmd, caseEnterPaymentCmd, caseCompletePaymentCmd, caseCancelCmd,
	}
	for _, c := range eventCmds {
		caseCmd.AddCommand(c)
		c.Flags().String("case", "", "Case id")
		c.Flags().String("actor", "", "Acting user id")
		_ = c.MarkFlagRequired("case")
	}

	for _, c := range []*cobra.Command{caseAllocateCmd, caseReworkReassignCmd} {
		c.Flags().String("assignee", "", "Assignee id")
		c.Flags().String("assignee-type", "gig", "Assignee type (gig|vendor)")
		c.Flags().String("vendor", "", "Vendor id for a gig worker under a vendor")
		_ = c.MarkFlagRequired("assignee")
	}
	caseAllocateCmd.Flags().String("reason", "", "Reallocation reason")
	caseRejectCmd.Flags().String("reason", "", "Rejection reason")
	caseCancelCmd.Flags().String("reason", "", "Cancellation reason")

	caseQCCmd.Flags().String("result", "", "QC result (pass|reject|rework)")
	caseQCCmd.Flags().String("comments", "", "Reviewer comments")
	caseQCCmd.Flags().StringSlice("issue", nil, "Issue found (repeatable)")
	caseQCCmd.Flags().String("instructions", "", "Rework instructions")
	_ = caseQCCmd.MarkFlagRequired("result")
	_ = caseQCCmd.MarkFlagRequired("actor")

	caseCompletePaymentCmd.Flags().String("amount", "", "Payout amount")
}
