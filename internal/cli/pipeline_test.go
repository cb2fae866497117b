package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"servers:\n" +
	"  - url: https://api.example.com/v1\n" +
	"components:\n" +
	"  securitySchemes:\n" +
	"    bearerAuth:\n" +
	"      type: http\n" +
	"      scheme: bearer\n" +
	"  schemas:\n" +
	"    User:\n" +
	"      type: object\n" +
	"      required: [name]\n" +
	"      properties:\n" +
	"        id:\n" +
	"          type: integer\n" +
	"          readOnly: true\n" +
	"        name:\n" +
	"          type: string\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      operationId: hello\n" +
	"      summary: Hello\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"  /users/{id}:\n" +
	"    get:\n" +
	"      operationId: getUser\n" +
	"      security:\n" +
	"        - bearerAuth: []\n" +
	"      parameters:\n" +
	"        - name: id\n" +
	"          in: path\n" +
	"          required: true\n" +
	"          schema:\n" +
	"            type: integer\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"  /users:\n" +
	"    post:\n" +
	"      operationId: createUser\n" +
	"      requestBody:\n" +
	"        required: true\n" +
	"        content:\n" +
	"          application/json:\n" +
	"            schema:\n" +
	"              $ref: '#/components/schemas/User'\n" +
	"      responses:\n" +
	"        '201':\n" +
	"          description: created\n"

func writeSpec(t *testing.T) string {
	t.Helper()
	specPath := filepath.Join(t.TempDir(), "spec.yaml")
	if err := os.WriteFile(specPath, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return specPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"har", "http", "json"} {
		format := format
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			specPath := writeSpec(t)
			outDir := filepath.Join(t.TempDir(), "out-"+format)

			out, err := execute(t, "generate", "--input", specPath, "--format", format, "--out", outDir, "--dry-run")
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !strings.Contains(out, "Planned writes to") {
				t.Fatalf("expected dry-run plan output, got: %s", out)
			}
			// Dry-run should not create the directory
			if _, err := os.Stat(outDir); err == nil {
				t.Fatalf("expected no writes on dry-run")
			}
		})
	}
}

func TestGeneratePipeline_WritesHAR(t *testing.T) {
	t.Parallel()

	specPath := writeSpec(t)
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, "generate", "--input", specPath, "--out", outDir,
		"--credential", "bearerAuth=abc123", "--var", "id=42")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Wrote 3 requests to") {
		t.Fatalf("unexpected output: %s", out)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "requests.har"))
	if err != nil {
		t.Fatalf("read har: %v", err)
	}
	var doc struct {
		Log struct {
			Entries []struct {
				Request struct {
					Method  string `json:"method"`
					URL     string `json:"url"`
					Headers []struct {
						Name  string `json:"name"`
						Value string `json:"value"`
					} `json:"headers"`
					PostData *struct {
						MimeType string `json:"mimeType"`
						Text     string `json:"text"`
					} `json:"postData"`
				} `json:"request"`
			} `json:"entries"`
		} `json:"log"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode har: %v", err)
	}
	if len(doc.Log.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(doc.Log.Entries))
	}

	byURL := map[string]int{}
	var order []string
	for i, e := range doc.Log.Entries {
		byURL[e.Request.Method+" "+e.Request.URL] = i
		order = append(order, e.Request.Method+" "+e.Request.URL)
	}
	// Entries follow the order paths are declared in.
	wantOrder := []string{
		"GET https://api.example.com/v1/hello",
		"GET https://api.example.com/v1/users/42",
		"POST https://api.example.com/v1/users",
	}
	if !equalStringSlices(order, wantOrder) {
		t.Fatalf("entry order: got %v, want %v", order, wantOrder)
	}
	i, ok := byURL["GET https://api.example.com/v1/users/42"]
	if !ok {
		t.Fatalf("missing getUser entry in %v", byURL)
	}
	auth := ""
	for _, h := range doc.Log.Entries[i].Request.Headers {
		if h.Name == "Authorization" {
			auth = h.Value
		}
	}
	if auth != "Bearer abc123" {
		t.Fatalf("expected bearer header, got %q", auth)
	}

	i, ok = byURL["POST https://api.example.com/v1/users"]
	if !ok {
		t.Fatalf("missing createUser entry in %v", byURL)
	}
	post := doc.Log.Entries[i].Request.PostData
	if post == nil || post.MimeType != "application/json" {
		t.Fatalf("unexpected post data: %+v", post)
	}
	if strings.Contains(post.Text, `"id"`) || !strings.Contains(post.Text, `"name"`) {
		t.Fatalf("unexpected body: %s", post.Text)
	}
}

func TestGeneratePipeline_ExistingOutputWithoutForce(t *testing.T) {
	t.Parallel()

	specPath := writeSpec(t)
	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "keep.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	if _, err := execute(t, "generate", "--input", specPath, "--out", outDir); err == nil {
		t.Fatalf("expected error for non-empty output without --force")
	}
	if _, err := execute(t, "generate", "--input", specPath, "--out", outDir, "--force"); err != nil {
		t.Fatalf("execute with --force: %v", err)
	}
}

func TestGeneratePipeline_MissingInput(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "generate", "--input", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing input file")
	}
}
