// Package emitter writes synthesized request bundles to an output
// directory as a HAR log, a .http request file and per-request JSON.
package emitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/swagger2har/internal/request"
	"github.com/mark3labs/swagger2har/internal/spec"
)

type Format string

const (
	FormatHAR  Format = "har"
	FormatHTTP Format = "http"
	FormatJSON Format = "json"
)

// ParseFormat maps a case-insensitive name onto Format.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatHAR, FormatHTTP, FormatJSON:
		return f, true
	}
	return "", false
}

// Entry is one synthesized operation.
type Entry struct {
	ID          string // METHOD path
	OperationID string
	Summary     string
	Description string
	Tags        []string
	Request     *request.Request
}

// SchemaExample is the generated example of a named component schema.
type SchemaExample struct {
	Name   string
	Value  any
	Schema *spec.Schema // orders object keys when set
}

// Bundle is everything one run produces.
type Bundle struct {
	Title    string
	Version  string
	Entries  []Entry
	Examples []SchemaExample
}

// Options controls what Emit writes and where.
type Options struct {
	OutDir   string   // required
	Formats  []Format // defaults to har
	Examples bool     // also write examples/<Schema>.json
	Force    bool     // write into a non-empty directory
	DryRun   bool     // plan only
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

type Result struct {
	Planned []PlannedFile
}

// Emit renders the bundle and, unless DryRun is set, writes it under
// OutDir. The plan is sorted by path.
func Emit(ctx context.Context, b *Bundle, opts Options) (*Result, error) {
	if b == nil {
		return nil, fmt.Errorf("emitter: nil bundle")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("emitter: OutDir is required")
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []Format{FormatHAR}
	}

	files := map[string][]byte{}
	for _, f := range formats {
		switch f {
		case FormatHAR:
			data, err := renderHAR(b)
			if err != nil {
				return nil, fmt.Errorf("render har: %w", err)
			}
			files["requests.har"] = data
		case FormatHTTP:
			files["requests.http"] = []byte(renderHTTP(b))
		case FormatJSON:
			names := newSlugger()
			for i := range b.Entries {
				data, err := renderRequestJSON(&b.Entries[i])
				if err != nil {
					return nil, fmt.Errorf("render %s: %w", b.Entries[i].ID, err)
				}
				files[filepath.Join("requests", names.next(entryName(&b.Entries[i]))+".json")] = data
			}
		default:
			return nil, fmt.Errorf("emitter: unknown format %q", f)
		}
	}
	if opts.Examples {
		names := newSlugger()
		for _, ex := range b.Examples {
			data, err := request.EncodeJSON(ex.Value, ex.Schema, "  ")
			if err != nil {
				return nil, fmt.Errorf("render example %s: %w", ex.Name, err)
			}
			files[filepath.Join("examples", names.next(ex.Name)+".json")] = append(data, '\n')
		}
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: filepath.ToSlash(rel), Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(ctx, opts.OutDir, rels, files, opts.Force); err != nil {
			return nil, err
		}
	}
	return &Result{Planned: planned}, nil
}

func writeFiles(ctx context.Context, outDir string, rels []string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("emitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(abs, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		if err := writeAtomic(p, files[rel]); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".swagger2har-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func entryName(e *Entry) string {
	if e.OperationID != "" {
		return e.OperationID
	}
	return e.ID
}

// slugger hands out unique file-name slugs.
type slugger map[string]int

func newSlugger() slugger { return slugger{} }

func (s slugger) next(name string) string {
	slug := slugify(name)
	if slug == "" {
		slug = "unnamed"
	}
	s[slug]++
	if n := s[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}

// slugify lowercases name and keeps alphanumerics, dashes and
// underscores; every other run of characters becomes one dash.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
