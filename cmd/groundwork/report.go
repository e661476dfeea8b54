package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rgardiner/groundwork/internal/feedback"
	"github.com/rgardiner/groundwork/internal/types"
)

var reportCmd = &cobra.Command{
	Use:   "report <report.json>",
	Short: "Record an execution report from the external executor",
	Long: `Ingest the executor's JSON execution report, compute must-read
accuracy deltas against the referenced context package, and append
feedback to the archive. Use "-" to read the report from stdin.

A malformed report is rejected naming the invalid field; nothing is
partially recorded.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read report: %v\n", err)
			os.Exit(1)
		}

		var report types.ExecutionReport
		if err := json.Unmarshal(data, &report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: report is not valid JSON: %v\n", err)
			os.Exit(1)
		}

		recorder := feedback.New(store, logger)
		fb, err := recorder.Record(context.Background(), projectPath, &report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s feedback recorded for task %s\n\n", green("OK"), fb.TaskID)
		fmt.Printf("Prediction accuracy:\n")
		fmt.Printf("  predicted   %d files\n", len(fb.Accuracy.MustRead.Predicted))
		fmt.Printf("  actual      %d files\n", len(fb.Accuracy.MustRead.Actual))
		fmt.Printf("  missed      %v\n", fb.Accuracy.MustRead.Missed)
		fmt.Printf("  unnecessary %v\n", fb.Accuracy.MustRead.Unnecessary)
		fmt.Printf("\n%s\n", gray("This feedback will surface on similar future requests."))
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
