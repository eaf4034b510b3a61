package cli

import (
	"github.com/spf13/cobra"

	"github.com/blockedby/mailmerge/internal/validation"
)

func newValidateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate JOB_FILE",
		Short: "Check a job file without sending anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			job, err := LoadJobFile(args[0])
			if err != nil {
				return err
			}

			report := validation.Validate(job.ValidationInput())
			if err := writeReport(rt.out, output, report); err != nil {
				return err
			}
			return report.Err()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", FormatTable, "Output format: table, json, yaml")

	return cmd
}
