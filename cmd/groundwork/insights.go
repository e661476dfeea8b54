package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rgardiner/groundwork/internal/insight"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Aggregate execution feedback into recommendations",
	Long: `Recompute success rate, prediction accuracy, and the failure-mode
histogram over this project's feedback corpus. Insights are
recommendations for a human; nothing is applied automatically.`,
	Run: func(cmd *cobra.Command, args []string) {
		gen := insight.New(store, logger)
		insights, stats, err := gen.Generate(context.Background(), projectPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Feedback insights ==="))
		if stats.TotalFeedback == 0 {
			fmt.Printf("%s\n", gray("No feedback recorded yet. Run `groundwork report` after executions."))
			return
		}

		fmt.Printf("Feedback records:      %d\n", stats.TotalFeedback)
		fmt.Printf("Success rate:          %.0f%%\n", stats.SuccessRate*100)
		fmt.Printf("Mean unnecessary rate: %.0f%%\n", stats.MeanUnnecessaryRate*100)
		fmt.Printf("Mean missed rate:      %.0f%%\n", stats.MeanMissedRate*100)
		if len(stats.FailureHistogram) > 0 {
			fmt.Printf("\n%s\n", yellow("Failure histogram:"))
			for category, count := range stats.FailureHistogram {
				fmt.Printf("  %-20s %d\n", category, count)
			}
		}

		fmt.Printf("\n%s\n", yellow("Recommendations:"))
		if len(insights) == 0 {
			fmt.Printf("  %s\n", gray("none — metrics are within expected ranges"))
		}
		for _, ins := range insights {
			fmt.Printf("  - [%s] %s\n    %s\n", ins.Category, ins.Recommendation,
				gray(fmt.Sprintf("%s = %.2f", ins.SupportingMetric.Name, ins.SupportingMetric.Value)))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}
