package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleanslate-tools/cleanslate/internal/ui"
)

var (
	auditHours  int
	auditOutput string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long:  "Summarize, export, or verify the append-only audit log that records every scan, deletion, and policy decision.",
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate recent audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		summary, err := app.Audit.Summarize(auditHours)
		if err != nil {
			return err
		}

		fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("Audit summary, last %dh", summary.PeriodHours)))
		fmt.Printf("  Total events      %d\n", summary.TotalEvents)
		fmt.Printf("  Security events   %d\n", summary.SecurityEvents)
		fmt.Printf("  Completed ops     %d\n", summary.OperationsCompleted)
		fmt.Printf("  Failed ops        %d\n", summary.OperationsFailed)
		if len(summary.EventsByType) > 0 {
			fmt.Println("  By type:")
			for typ, n := range summary.EventsByType {
				fmt.Printf("    %-22s %d\n", typ, n)
			}
		}
		if len(summary.EventsBySeverity) > 0 {
			fmt.Println("  By severity:")
			for sev, n := range summary.EventsBySeverity {
				fmt.Printf("    %-22s %d\n", sev, n)
			}
		}
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent audit events as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditOutput == "" {
			return fmt.Errorf("pass --output")
		}
		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Audit.Export(auditOutput, auditHours)
		if err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("exported %d events to %s", n, auditOutput)))
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check stored audit events for tampering",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Audit.VerifyIntegrity()
		if err != nil {
			return err
		}

		fmt.Printf("  %d events checked, %d valid\n", report.Total, report.Valid)
		for _, line := range report.MalformedLine {
			fmt.Println(ui.Warn(fmt.Sprintf("line %d is malformed", line)))
		}
		for _, line := range report.TamperedLines {
			fmt.Println(ui.Error(fmt.Sprintf("line %d failed checksum verification", line)))
		}
		if len(report.TamperedLines) > 0 {
			return fmt.Errorf("audit log integrity check failed")
		}
		fmt.Println(ui.Success("audit log integrity verified"))
		return nil
	},
}

func init() {
	auditCmd.PersistentFlags().IntVar(&auditHours, "hours", 24, "Time window in hours")
	auditExportCmd.Flags().StringVar(&auditOutput, "output", "", "Destination file for the JSON export")

	auditCmd.AddCommand(auditSummaryCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}
