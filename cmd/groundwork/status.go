package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent tasks, packages, and open sync questions",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== groundwork status ==="))
		fmt.Printf("Project: %s\n\n", projectPath)

		tasks, err := store.Search(ctx, "", archive.Filter{
			ProjectPath: projectPath,
			Kind:        archive.KindTask,
			Limit:       10,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read tasks: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n", yellow("Recent tasks:"))
		if len(tasks) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		for _, rec := range tasks {
			var task types.Task
			if err := json.Unmarshal(rec.Payload, &task); err != nil {
				continue
			}
			fmt.Printf("  %s  %-13s %.2f  %s\n",
				task.ID[:8], task.TaskType, task.Confidence, gray(truncateRequest(task.RawRequest)))
		}

		packages, err := store.Search(ctx, "", archive.Filter{
			ProjectPath: projectPath,
			Kind:        archive.KindContextPackage,
			Limit:       5,
		})
		if err == nil {
			fmt.Printf("\n%s\n", yellow("Recent packages:"))
			if len(packages) == 0 {
				fmt.Printf("  %s\n", gray("none"))
			}
			for _, rec := range packages {
				var pkg types.ContextPackage
				if err := json.Unmarshal(rec.Payload, &pkg); err != nil {
					continue
				}
				score := "unscored"
				if pkg.QualityScore != nil {
					score = fmt.Sprintf("%d/100", *pkg.QualityScore)
				}
				fmt.Printf("  %s  task %s  quality %s  %d files\n",
					pkg.ID[:8], pkg.TaskID[:8], score, len(pkg.MustRead))
			}
		}

		mgr, err := newSyncManager()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		open, err := mgr.Open(ctx, projectPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read sync questions: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n%s\n", yellow("Open sync questions:"))
		if len(open) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		for _, req := range open {
			fmt.Printf("  %s %s  task %s\n  %s\n", red("?"), req.ID[:8], req.TaskID[:8], req.Question)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func truncateRequest(s string) string {
	if len(s) <= 60 {
		return s
	}
	return s[:60] + "..."
}
