// Package migrations holds the index schema as numbered SQL files:
// NNN_name.up.sql applies a version and NNN_name.down.sql reverts it.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migration is one schema version.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// All returns the embedded migrations in version order.
func All() ([]Migration, error) {
	return Load(files)
}

// Load reads migrations from fsys. Every version needs both an up and a
// down file, and versions must be unique.
func Load(fsys fs.FS) ([]Migration, error) {
	paths, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, path := range paths {
		version, name, direction, err := parseName(path)
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration %d has two names: %q and %q", version, m.Name, name)
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %03d_%s needs both up and down files", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// parseName splits "001_initial.up.sql" into 1, "initial", "up".
func parseName(path string) (int, string, string, error) {
	base, ok := strings.CutSuffix(path, ".sql")
	if !ok {
		return 0, "", "", fmt.Errorf("migration %s: not a .sql file", path)
	}
	var direction string
	switch {
	case strings.HasSuffix(base, ".up"):
		direction, base = "up", strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		direction, base = "down", strings.TrimSuffix(base, ".down")
	default:
		return 0, "", "", fmt.Errorf("migration %s: want NNN_name.up.sql or NNN_name.down.sql", path)
	}
	num, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", "", fmt.Errorf("migration %s: missing version prefix", path)
	}
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", "", fmt.Errorf("migration %s: bad version %q", path, num)
	}
	return version, name, direction, nil
}
