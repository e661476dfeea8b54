package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rgardiner/groundwork/internal/types"
)

var respondCmd = &cobra.Command{
	Use:   "respond [request-id] [answer]",
	Short: "Answer an open human sync question",
	Long: `Resolve an open human sync question so the blocked preparation can be
restarted. With no arguments, lists open questions and prompts
interactively.

Exits 0 when the response is accepted; non-zero when the request is
missing, expired, or the answer is not one of the offered options.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		mgr, err := newSyncManager()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var requestID, answer string
		switch len(args) {
		case 2:
			requestID, answer = args[0], args[1]
		default:
			requestID, answer, err = promptForResponse(ctx, mgr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		req, err := mgr.Respond(ctx, projectPath, requestID, answer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s sync request %s answered: %s\n", green("OK"), req.ID, req.Response)
		fmt.Printf("Re-run preparation for task %s to continue.\n", req.TaskID)
	},
}

func init() {
	rootCmd.AddCommand(respondCmd)
}

// promptForResponse lists open questions and reads a selection
func promptForResponse(ctx context.Context, mgr syncManager) (string, string, error) {
	open, err := mgr.Open(ctx, projectPath)
	if err != nil {
		return "", "", err
	}
	if len(open) == 0 {
		return "", "", fmt.Errorf("no open sync questions for %s", projectPath)
	}

	req := open[0]
	if len(open) > 1 {
		fmt.Printf("%d open questions; answering the most recent.\n\n", len(open))
	}

	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	fmt.Printf("%s\n\n%s\n\n", yellow("Question"), req.Question)
	for i, opt := range req.Options {
		fmt.Printf("  %d. %s\n", i+1, opt)
	}
	fmt.Println()

	rl, err := readline.New("choose an option number> ")
	if err != nil {
		return "", "", fmt.Errorf("failed to open prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if err != nil {
			return "", "", fmt.Errorf("prompt aborted: %w", err)
		}
		choice, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil || choice < 1 || choice > len(req.Options) {
			fmt.Printf("enter a number between 1 and %d\n", len(req.Options))
			continue
		}
		return req.ID, req.Options[choice-1], nil
	}
}

// syncManager is the subset of humansync.Manager the prompt needs;
// narrowing it keeps promptForResponse testable.
type syncManager interface {
	Open(ctx context.Context, projectPath string) ([]*types.HumanSyncRequest, error)
}
