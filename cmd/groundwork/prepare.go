package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rgardiner/groundwork/internal/prepare"
	"github.com/rgardiner/groundwork/internal/types"
)

var prepareWait bool

var prepareCmd = &cobra.Command{
	Use:   "prepare <request...>",
	Short: "Prepare a context package for a development request",
	Long: `Classify the request, discover relevant files, retrieve history for
this project, and emit a quality-gated context package for an executor.

Exits 0 when a package is emitted; non-zero when preparation is blocked
or waiting on a human sync response.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rawRequest := strings.Join(args, " ")

		orch, err := newOrchestrator(prepareWait)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := orch.Prepare(context.Background(), rawRequest, projectPath)
		if err != nil {
			printPrepareFailure(result, err)
			os.Exit(1)
		}

		if result.Sync != nil && result.Package == nil {
			printOpenQuestion(result.Sync)
			os.Exit(1)
		}

		printPackage(result)
	},
}

func init() {
	prepareCmd.Flags().BoolVar(&prepareWait, "wait", false, "block until an open human sync question is answered")
	rootCmd.AddCommand(prepareCmd)
}

func printPackage(result *prepare.Result) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	pkg := result.Package
	fmt.Printf("\n%s\n\n", cyan("=== Context Package ==="))
	fmt.Printf("Task:     %s (%s, confidence %.2f, %s)\n",
		result.Task.ID, result.Task.TaskType, result.Task.Confidence, result.Task.ClassificationMethod)
	fmt.Printf("Package:  %s\n", pkg.ID)
	fmt.Printf("Quality:  %s\n\n", green(fmt.Sprintf("%d/100", *pkg.QualityScore)))

	fmt.Printf("%s\n", yellow("Must-read files:"))
	for _, entry := range pkg.MustRead {
		fmt.Printf("  [%-6s] %s\n           %s\n", entry.Tier, entry.Path, gray(entry.Reason))
	}

	if len(pkg.Patterns) > 0 {
		fmt.Printf("\n%s\n", yellow("Project conventions:"))
		for _, p := range pkg.Patterns {
			fmt.Printf("  - %s: %s\n", p.Name, p.Description)
		}
	}

	if pkg.Architecture != nil && pkg.Architecture.ModulePath != "" {
		fmt.Printf("\n%s %s", yellow("Module:"), pkg.Architecture.ModulePath)
		if len(pkg.Architecture.KeyDeps) > 0 {
			fmt.Printf(" %s", gray("(deps: "+strings.Join(pkg.Architecture.KeyDeps, ", ")+")"))
		}
		fmt.Println()
	}

	if !pkg.History.IsEmpty() {
		fmt.Printf("\n%s\n", yellow("History:"))
		for _, a := range pkg.History.PreviousAttempts {
			fmt.Printf("  - previous attempt %s", a.Outcome)
			if a.Lesson != "" {
				fmt.Printf(": %s", a.Lesson)
			}
			fmt.Println()
		}
		for _, d := range pkg.History.RelatedDecisions {
			fmt.Printf("  - decision: %s\n", d.Title)
		}
	}

	fmt.Printf("\n%s\n", yellow("Acceptance criteria:"))
	for _, c := range pkg.AcceptanceCriteria {
		fmt.Printf("  - %s\n", c)
	}
	fmt.Println()
}

func printOpenQuestion(req *types.HumanSyncRequest) {
	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", yellow("Human input required"))
	fmt.Printf("%s\n\n", req.Question)
	for i, opt := range req.Options {
		fmt.Printf("  %d. %s\n", i+1, opt)
	}
	fmt.Printf("\nAnswer with: groundwork respond %s \"<option>\"\n", req.ID)
}

func printPrepareFailure(result *prepare.Result, err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	var blocked *types.QualityBlockedError
	var expired *types.HumanSyncExpiredError
	switch {
	case errors.As(err, &blocked):
		fmt.Fprintf(os.Stderr, "\n%s score %d below threshold\n", red("Preparation blocked:"), blocked.Score)
		for _, reason := range blocked.Reasons {
			fmt.Fprintf(os.Stderr, "  - %s\n", reason)
		}
		if result != nil && result.Sync != nil {
			fmt.Fprintln(os.Stderr)
			printOpenQuestion(result.Sync)
		}
	case errors.As(err, &expired):
		fmt.Fprintf(os.Stderr, "\n%s %v\n", red("Preparation blocked:"), err)
		fmt.Fprintf(os.Stderr, "Restart with: groundwork prepare once the ambiguity is resolved\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
