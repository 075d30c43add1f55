package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	gooseUp   = "-- +goose Up"
	gooseDown = "-- +goose Down"
)

// ValidateDir checks the migrations in a directory on disk.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled in for driver.
func ValidateEmbedded(driver string) error {
	_, sub := DialectFor(driver)
	return ValidateFS(embedded, path.Join("migrations", sub))
}

// ValidateFS enforces the YYYYMMDDHHMMSS_name.sql naming, unique versions and
// an Up section that precedes a Down section in every file.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := migrationName.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkSections(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}

	if len(versions) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	return nil
}

func checkSections(sql string) error {
	up := strings.Index(sql, gooseUp)
	down := strings.Index(sql, gooseDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", gooseUp)
	case down < 0:
		return fmt.Errorf("missing %q", gooseDown)
	case down < up:
		return fmt.Errorf("%q must come before %q", gooseUp, gooseDown)
	}
	return nil
}
