package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inspectctl/internal/results"
	"inspectctl/internal/validate"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <report.json>",
		Short: "Re-validate a previously written report file",
		Long: `Loads a JSON report produced by 'inspectctl run' and runs the
structural validator over its result tree. Useful for checking reports
produced by older versions or archived in CI artifacts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading report: %w", err)
			}

			var report results.Report
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("parsing report: %w", err)
			}

			validation := validate.New().ValidateTestResults(report.Results)
			for _, issue := range validation.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %s: %s\n", issue.Field, issue.Message)
			}
			for _, issue := range validation.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s: %s\n", issue.Field, issue.Message)
			}

			if !validation.IsValid {
				return fmt.Errorf("report is invalid: %d error(s), %d warning(s)",
					validation.Summary.ErrorCount, validation.Summary.WarningCount)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report is valid (%d warning(s))\n", validation.Summary.WarningCount)
			return nil
		},
	}
}
