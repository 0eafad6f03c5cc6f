package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a path given on the command line
// does not exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// IsScenarioFile reports whether path has a scenario extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// FindScenarioFiles expands paths into scenario files. Directories are
// walked recursively; files are taken as given. filter, when set, is a
// filepath.Match glob applied to the file name without its extension.
// The result is sorted and free of duplicates.
func FindScenarioFiles(paths []string, filter string) ([]string, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if filter != "" {
			if ok, _ := filepath.Match(filter, fileStem(path)); !ok {
				return
			}
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: p}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// golden snapshots live next to scenarios
				if path != p && d.Name() == "golden" {
					return filepath.SkipDir
				}
				return nil
			}
			if IsScenarioFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func checkFilter(filter string) error {
	if filter == "" {
		return nil
	}
	if _, err := filepath.Match(filter, ""); err != nil {
		return fmt.Errorf("invalid filter pattern: %w", err)
	}
	return nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Loaded is one discovered scenario file. Err is set, and Scenario nil,
// when the file could not be loaded.
type Loaded struct {
	Path     string
	Scenario *Scenario
	Err      error
}

// LoadScenarios finds and loads the scenario files under paths, in file
// order. filter, when set, keeps a file whose name without extension or
// whose scenario name matches the glob. Files that fail to load can only
// match on their file name.
func LoadScenarios(paths []string, filter string) ([]Loaded, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	files, err := FindScenarioFiles(paths, "")
	if err != nil {
		return nil, err
	}

	out := make([]Loaded, 0, len(files))
	for _, f := range files {
		l := Loaded{Path: f}
		if sc, err := LoadScenario(f); err != nil {
			l.Err = err
		} else {
			l.Scenario = sc
		}
		if filter != "" && !l.matches(filter) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (l Loaded) matches(filter string) bool {
	if ok, _ := filepath.Match(filter, fileStem(l.Path)); ok {
		return true
	}
	if l.Scenario == nil {
		return false
	}
	ok, _ := filepath.Match(filter, l.Scenario.Name)
	return ok
}
