package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultConfigYAML = `# groundwork configuration
archive_path: .groundwork/archive.db

oracle:
  # Enable LLM-augmented classification and quality judgment.
  # Requires ANTHROPIC_API_KEY. The pipeline works fully without it.
  enabled: false
  model: ""
  timeout: 30s

gate:
  threshold: 70

classifier:
  confidence_floor: 0.5

sync:
  await_timeout: 10m

discovery:
  config_path: .groundwork/discovery.yaml
`

const defaultDiscoveryYAML = `# discovery strategy tuning
high_tier_limit: 5
min_relevance: 1.0
max_candidates: 40

# extra_patterns:
#   documentation:
#     - "website/"
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize groundwork for a project",
	Run: func(cmd *cobra.Command, args []string) {
		dir := filepath.Join(projectPath, ".groundwork")
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		wrote := false
		for name, content := range map[string]string{
			"config.yaml":    defaultConfigYAML,
			"discovery.yaml": defaultDiscoveryYAML,
		} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("  %s already exists, leaving it alone\n", path)
				continue
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("  wrote %s\n", path)
			wrote = true
		}

		green := color.New(color.FgGreen).SprintFunc()
		if wrote {
			fmt.Printf("%s groundwork initialized in %s\n", green("OK"), dir)
		} else {
			fmt.Printf("%s groundwork already initialized in %s\n", green("OK"), dir)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
