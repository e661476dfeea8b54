// Package extract derives project-specific conventions and structural
// facts from the file index. Both extractors run in parallel with file
// discovery; their failures degrade the context package (fewer patterns,
// less architecture detail) but never block preparation.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"github.com/rgardiner/groundwork/internal/discovery"
	"github.com/rgardiner/groundwork/internal/types"
)

// maxKeyDeps bounds how many dependencies the architecture summary names
const maxKeyDeps = 8

// Extractor derives patterns and architecture from a project index
type Extractor struct {
	logger *zap.Logger
}

// New creates an extractor
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Patterns samples the index for observable conventions. The result is a
// best-effort list; an empty project yields an empty list, not an error.
func (e *Extractor) Patterns(ctx context.Context, index *discovery.Index) ([]types.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var patterns []types.Pattern

	counts := struct {
		goFiles, goTests, internalPkgs, cmdDirs, yamlConfigs, markdownDocs int
	}{}
	for _, f := range index.Files {
		switch {
		case strings.HasSuffix(f, "_test.go"):
			counts.goTests++
			counts.goFiles++
		case strings.HasSuffix(f, ".go"):
			counts.goFiles++
		case strings.HasSuffix(f, ".yml"), strings.HasSuffix(f, ".yaml"):
			counts.yamlConfigs++
		case strings.HasSuffix(f, ".md"):
			counts.markdownDocs++
		}
		if strings.HasPrefix(f, "internal/") {
			counts.internalPkgs++
		}
		if strings.HasPrefix(f, "cmd/") {
			counts.cmdDirs++
		}
	}

	if counts.goTests > 0 {
		patterns = append(patterns, types.Pattern{
			Name:        "package-level tests",
			Description: fmt.Sprintf("%d _test.go files colocated with the code they test", counts.goTests),
		})
	}
	if counts.internalPkgs > 0 {
		patterns = append(patterns, types.Pattern{
			Name:        "internal package boundary",
			Description: "implementation packages live under internal/ and are not importable externally",
		})
	}
	if counts.cmdDirs > 0 {
		patterns = append(patterns, types.Pattern{
			Name:        "cmd entry point layout",
			Description: "binaries are built from per-command directories under cmd/",
		})
	}
	if counts.yamlConfigs > 0 {
		patterns = append(patterns, types.Pattern{
			Name:        "yaml configuration",
			Description: fmt.Sprintf("%d YAML files carry project configuration", counts.yamlConfigs),
		})
	}
	if counts.markdownDocs > 0 {
		patterns = append(patterns, types.Pattern{
			Name:        "markdown documentation",
			Description: fmt.Sprintf("%d markdown files document the project", counts.markdownDocs),
		})
	}

	e.logger.Debug("pattern extraction completed", zap.Int("patterns", len(patterns)))
	return patterns, nil
}

// Architecture summarizes structure: entry points, top-level layering,
// and (for Go projects) the module path and notable dependencies parsed
// from go.mod.
func (e *Extractor) Architecture(ctx context.Context, index *discovery.Index) (*types.Architecture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	arch := &types.Architecture{}

	layerSet := make(map[string]bool)
	for _, f := range index.Files {
		if filepath.Base(f) == "main.go" {
			arch.EntryPoints = append(arch.EntryPoints, f)
		}
		if i := strings.IndexByte(f, '/'); i > 0 {
			layerSet[f[:i]] = true
		}
	}
	for layer := range layerSet {
		arch.Layers = append(arch.Layers, layer)
	}
	sort.Strings(arch.Layers)
	sort.Strings(arch.EntryPoints)

	if modPath, deps, err := parseGoMod(index.Root); err == nil {
		arch.ModulePath = modPath
		arch.KeyDeps = deps
	} else {
		// Non-Go projects or unparseable go.mod: structural summary only
		e.logger.Debug("go.mod not parsed", zap.Error(err))
	}

	return arch, nil
}

// parseGoMod reads the project's go.mod and returns the module path and
// its direct dependencies.
func parseGoMod(root string) (string, []string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", nil, err
	}
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse go.mod: %w", err)
	}

	var deps []string
	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		deps = append(deps, req.Mod.Path)
		if len(deps) == maxKeyDeps {
			break
		}
	}

	modPath := ""
	if f.Module != nil {
		modPath = f.Module.Mod.Path
	}
	return modPath, deps, nil
}
