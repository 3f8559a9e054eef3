package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

var (
	sqlFileRe   = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	createTblRe = regexp.MustCompile(`(?i)CREATE TABLE (?:IF NOT EXISTS )?([a-z_][a-z0-9_]*)`)
	dropTblRe   = regexp.MustCompile(`(?i)DROP TABLE (?:IF EXISTS )?([a-z_][a-z0-9_]*)`)
)

// ValidateDir checks the migration files in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks filenames, versions and goose markers, and that every
// table an Up section creates is dropped by its Down section.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := validateSections(name, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func validateSections(name, txt string) error {
	upAt := strings.Index(txt, upMarker)
	downAt := strings.Index(txt, downMarker)
	if upAt < 0 {
		return fmt.Errorf("migration %q missing %q", name, upMarker)
	}
	if downAt < 0 {
		return fmt.Errorf("migration %q missing %q", name, downMarker)
	}
	if downAt < upAt {
		return fmt.Errorf("migration %q has its Down section before Up", name)
	}

	dropped := map[string]bool{}
	for _, m := range dropTblRe.FindAllStringSubmatch(txt[downAt:], -1) {
		dropped[strings.ToLower(m[1])] = true
	}
	for _, m := range createTblRe.FindAllStringSubmatch(txt[upAt:downAt], -1) {
		if table := strings.ToLower(m[1]); !dropped[table] {
			return fmt.Errorf("migration %q creates table %s without dropping it in Down", name, table)
		}
	}
	return nil
}
