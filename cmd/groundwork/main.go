// groundwork prepares bounded, high-signal context packages for an
// external coding agent and learns from how executions actually went.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/classifier"
	"github.com/rgardiner/groundwork/internal/config"
	"github.com/rgardiner/groundwork/internal/discovery"
	"github.com/rgardiner/groundwork/internal/extract"
	"github.com/rgardiner/groundwork/internal/gate"
	"github.com/rgardiner/groundwork/internal/humansync"
	"github.com/rgardiner/groundwork/internal/learning"
	"github.com/rgardiner/groundwork/internal/oracle"
	"github.com/rgardiner/groundwork/internal/prepare"
)

var (
	projectPath string
	verbose     bool

	cfg    *config.Config
	store  archive.Archive
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "groundwork",
	Short: "Task preparation and compounding learning for coding agents",
	Long: `groundwork classifies a development request, assembles a context
package (which files matter, what conventions apply, what happened on
similar tasks before), gates it on a quality score, and records execution
feedback so the next preparation is better than the last.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return fmt.Errorf("failed to resolve project path: %w", err)
		}
		projectPath = abs

		cfg, err = config.Load(projectPath)
		if err != nil {
			return err
		}

		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
			err = nil
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		store, err = archive.Open(&archive.Config{Path: cfg.ArchivePath})
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", ".", "project root to prepare against")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// newOracle returns the configured oracle client, or nil for the
// heuristic-only pipeline.
func newOracle() oracle.Oracle {
	if !cfg.OracleEnabled {
		return nil
	}
	retry := oracle.DefaultRetryConfig()
	if cfg.OracleTimeout > 0 {
		retry.Timeout = cfg.OracleTimeout
	}
	client, err := oracle.NewClient(&oracle.Config{
		Model:  cfg.OracleModel,
		Retry:  retry,
		Logger: logger,
	})
	if err != nil {
		// Oracle misconfiguration degrades to heuristics rather than
		// failing the pipeline.
		fmt.Fprintf(os.Stderr, "Warning: oracle disabled: %v\n", err)
		return nil
	}
	return client
}

// newSyncManager builds the human sync manager shared by commands
func newSyncManager() (*humansync.Manager, error) {
	return humansync.NewManager(&humansync.Config{
		Archive:      store,
		Logger:       logger,
		AwaitTimeout: cfg.SyncAwaitTimeout,
	})
}

// newOrchestrator wires a full preparation pipeline
func newOrchestrator(waitForHuman bool) (*prepare.Orchestrator, error) {
	discoveryCfg, err := discovery.LoadConfig(cfg.DiscoveryConfigPath)
	if err != nil {
		return nil, err
	}
	syncMgr, err := newSyncManager()
	if err != nil {
		return nil, err
	}
	llm := newOracle()
	return prepare.New(&prepare.Config{
		Classifier:      classifier.New(&classifier.Config{Oracle: llm, Logger: logger}),
		Discoverer:      discovery.New(discoveryCfg, logger),
		Extractor:       extract.New(logger),
		Retriever:       learning.New(store, logger),
		Gate:            gate.New(&gate.Config{Threshold: cfg.GateThreshold, Oracle: llm, Logger: logger}),
		Sync:            syncMgr,
		Archive:         store,
		Logger:          logger,
		ConfidenceFloor: cfg.ConfidenceFloor,
		WaitForHuman:    waitForHuman,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
