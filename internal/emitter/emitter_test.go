package emitter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/swagger2har/internal/request"
)

func minimalBundle() *Bundle {
	return &Bundle{
		Title:   "Sample API",
		Version: "1.0.0",
		Entries: []Entry{
			{
				ID:          "GET /users/{id}",
				OperationID: "getUser",
				Summary:     "Fetch a user",
				Request: &request.Request{
					Method:  "GET",
					URL:     "https://api.example.com/users/0",
					Headers: []request.Pair{{Name: "Authorization", Value: "Bearer abc123"}},
				},
			},
			{
				ID: "POST /users",
				Request: &request.Request{
					Method:  "POST",
					URL:     "https://api.example.com/users",
					Headers: []request.Pair{{Name: "Content-Type", Value: "application/json"}},
					Body:    &request.Body{ContentType: "application/json", Data: []byte("{\n  \"name\": \"string\"\n}")},
				},
			},
		},
		Examples: []SchemaExample{{Name: "User", Value: map[string]any{"name": "string"}}},
	}
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	res, err := Emit(context.Background(), minimalBundle(), Options{
		OutDir:   dir,
		Formats:  []Format{FormatHAR, FormatHTTP, FormatJSON},
		Examples: true,
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	want := []string{
		"examples/user.json",
		"requests.har",
		"requests.http",
		"requests/getuser.json",
		"requests/post-users.json",
	}
	if len(res.Planned) != len(want) {
		t.Fatalf("planned %d files, want %d: %+v", len(res.Planned), len(want), res.Planned)
	}
	for i, pf := range res.Planned {
		if pf.RelPath != want[i] {
			t.Fatalf("planned[%d] = %s, want %s", i, pf.RelPath, want[i])
		}
		if pf.Size == 0 {
			t.Fatalf("planned %s is empty", pf.RelPath)
		}
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written on dry-run")
	}
}

func TestEmit_WriteAndContents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := Emit(context.Background(), minimalBundle(), Options{
		OutDir:  dir,
		Formats: []Format{FormatHAR, FormatHTTP, FormatJSON},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "requests.har"))
	if err != nil {
		t.Fatalf("read har: %v", err)
	}
	var doc struct {
		Log struct {
			Version string `json:"version"`
			Entries []struct {
				Comment string `json:"comment"`
				Request struct {
					Method   string `json:"method"`
					URL      string `json:"url"`
					PostData *struct {
						MimeType string `json:"mimeType"`
						Text     string `json:"text"`
					} `json:"postData"`
				} `json:"request"`
			} `json:"entries"`
		} `json:"log"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("har invalid: %v", err)
	}
	if doc.Log.Version != "1.2" || len(doc.Log.Entries) != 2 {
		t.Fatalf("unexpected har log: %+v", doc.Log)
	}
	if doc.Log.Entries[0].Comment != "getUser" || doc.Log.Entries[1].Comment != "POST /users" {
		t.Fatalf("entry comments: %q, %q", doc.Log.Entries[0].Comment, doc.Log.Entries[1].Comment)
	}
	if pd := doc.Log.Entries[1].Request.PostData; pd == nil || pd.MimeType != "application/json" {
		t.Fatalf("missing postData: %+v", pd)
	}

	httpFile, err := os.ReadFile(filepath.Join(dir, "requests.http"))
	if err != nil {
		t.Fatalf("read http: %v", err)
	}
	wantHTTP := "# Sample API 1.0.0\n\n" +
		"### Fetch a user\n" +
		"# @name getUser\n" +
		"GET https://api.example.com/users/0\n" +
		"Authorization: Bearer abc123\n" +
		"\n" +
		"### POST /users\n" +
		"POST https://api.example.com/users\n" +
		"Content-Type: application/json\n" +
		"\n" +
		"{\n  \"name\": \"string\"\n}\n"
	if string(httpFile) != wantHTTP {
		t.Fatalf("http file mismatch:\n%s", httpFile)
	}

	if _, err := os.Stat(filepath.Join(dir, "examples")); !os.IsNotExist(err) {
		t.Fatalf("examples written without Examples option")
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".swagger2har-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestEmit_Deterministic(t *testing.T) {
	t.Parallel()

	read := func() string {
		dir := t.TempDir()
		if _, err := Emit(context.Background(), minimalBundle(), Options{OutDir: dir, Formats: []Format{FormatHAR, FormatHTTP}}); err != nil {
			t.Fatalf("emit: %v", err)
		}
		var sb strings.Builder
		for _, name := range []string{"requests.har", "requests.http"} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			sb.Write(data)
		}
		return sb.String()
	}
	if a, b := read(), read(); a != b {
		t.Fatalf("outputs differ between runs")
	}
}

func TestEmit_NoForce_NonEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}
	if _, err := Emit(context.Background(), minimalBundle(), Options{OutDir: dir}); err == nil {
		t.Fatalf("expected error on non-empty dir without force")
	}
	if _, err := Emit(context.Background(), minimalBundle(), Options{OutDir: dir, Force: true}); err != nil {
		t.Fatalf("emit with force: %v", err)
	}
}

func TestEmit_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Emit(context.Background(), nil, Options{OutDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for nil bundle")
	}
	if _, err := Emit(context.Background(), minimalBundle(), Options{}); err == nil {
		t.Fatalf("expected error for missing OutDir")
	}
	if _, err := Emit(context.Background(), minimalBundle(), Options{OutDir: t.TempDir(), Formats: []Format{"yaml"}}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestSlugs(t *testing.T) {
	t.Parallel()

	s := newSlugger()
	cases := []struct{ in, want string }{
		{"GET /users/{id}", "get-users-id"},
		{"listPets", "listpets"},
		{"list_pets", "list_pets"},
		{"listPets", "listpets-2"},
		{"  ", "unnamed"},
	}
	for _, c := range cases {
		if got := s.next(c.in); got != c.want {
			t.Fatalf("slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if f, ok := ParseFormat(" HAR "); !ok || f != FormatHAR {
		t.Fatalf("ParseFormat: %q %v", f, ok)
	}
	if _, ok := ParseFormat("yaml"); ok {
		t.Fatalf("ParseFormat accepted yaml")
	}
}
