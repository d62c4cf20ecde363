package infra

import (
	"os"
	"path/filepath"
	"strings"
)

// PathExpander expands user-relative paths for configuration values
// (screenshot directories, data directory).
type PathExpander struct {
	homeDir string
}

// NewPathExpander creates a path expander using the real home directory.
func NewPathExpander() *PathExpander {
	home, _ := os.UserHomeDir()
	return &PathExpander{homeDir: home}
}

// NewPathExpanderWithHome creates a path expander with custom home (for testing).
func NewPathExpanderWithHome(home string) *PathExpander {
	return &PathExpander{homeDir: home}
}

// Exists checks if a path exists after expansion.
func (pe *PathExpander) Exists(path string) bool {
	_, err := os.Stat(pe.ExpandHome(path))
	return err == nil
}

// ExpandHome expands ~ to the user's home directory.
func (pe *PathExpander) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(pe.homeDir, path[2:])
	}
	if path == "~" {
		return pe.homeDir
	}
	return path
}

// ExpandAll expands every path, dropping empties.
func (pe *PathExpander) ExpandAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		out = append(out, pe.ExpandHome(p))
	}
	return out
}
