package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var header = template.Must(template.New("header").Parse(
	`-- {{.Version}} {{.Name}}{{if eq .Direction "down"}} (rollback){{end}}
{{- if and .Description (eq .Direction "up")}}
-- {{.Description}}
{{- end}}
-- generated {{.Created}}

`))

// Scaffold is a freshly written, empty up/down migration pair
type Scaffold struct {
	Version     string
	Name        string
	Description string
	Created     string
	UpPath      string
	DownPath    string
}

// CreateMigration writes the next pair into dir. Versions are six-digit
// sequence numbers continuing from the highest one present.
func CreateMigration(dir, name, description string) (*Scaffold, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("migrations directory: %w", err)
	}

	existing, err := ListMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	next := 1
	if n := len(existing); n > 0 {
		last, err := versionOf(existing[n-1])
		if err != nil {
			return nil, err
		}
		next = last + 1
	}

	s := &Scaffold{
		Version:     fmt.Sprintf("%06d", next),
		Name:        name,
		Description: description,
		Created:     time.Now().UTC().Format(time.RFC3339),
	}
	base := filepath.Join(dir, s.Version+"_"+slug)
	s.UpPath, s.DownPath = base+".up.sql", base+".down.sql"

	if err := s.write(s.UpPath, "up"); err != nil {
		return nil, err
	}
	if err := s.write(s.DownPath, "down"); err != nil {
		_ = os.Remove(s.UpPath)
		return nil, err
	}
	return s, nil
}

// write refuses to overwrite; two developers racing for a version should
// see a conflict, not lose a file.
func (s *Scaffold) write(path, direction string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s migration: %w", direction, err)
	}
	defer f.Close()

	data := struct {
		*Scaffold
		Direction string
	}{s, direction}
	if err := header.Execute(f, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func slugify(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
	}
	return strings.Join(slices.DeleteFunc(words, func(w string) bool { return w == "" }), "_")
}

func versionOf(base string) (int, error) {
	prefix, _, _ := strings.Cut(base, "_")
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migration %q has no numeric version: %w", base, err)
	}
	return v, nil
}

// ListMigrations names the up migrations at the root of fsys, in version
// order and without the .up.sql suffix. A missing directory lists nothing.
func ListMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []string{}, nil
	case err != nil:
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok && base != "" && !e.IsDir() {
			names = append(names, base)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		va, _ := versionOf(a)
		vb, _ := versionOf(b)
		return cmp.Or(cmp.Compare(va, vb), strings.Compare(a, b))
	})
	if names == nil {
		names = []string{}
	}
	return names, nil
}
