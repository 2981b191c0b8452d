// Package migrations embeds and applies the SQL schemas of the registry
// (PostgreSQL) and the price history (ClickHouse).
package migrations

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migration is one embedded SQL file. Version is the file name without
// the .sql suffix, e.g. "001_registry".
type Migration struct {
	Version string
	SQL     string
}

// Status reports whether a migration has been applied.
type Status struct {
	Version string
	Applied bool
}

// Load returns the migrations under dir of fsys in lexical order.
// Empty files are skipped.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{
			Version: strings.TrimSuffix(name, ".sql"),
			SQL:     string(data),
		})
	}
	return out, nil
}

func pending(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

func statuses(all []Migration, applied map[string]bool) []Status {
	out := make([]Status, len(all))
	for i, m := range all {
		out[i] = Status{Version: m.Version, Applied: applied[m.Version]}
	}
	return out
}
