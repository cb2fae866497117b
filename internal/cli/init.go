package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Format     string
	Force      bool
	Verbose    bool

	stdout io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample swagger2har configuration file",
		Long:  "Scaffold a commented swagger2har configuration file that documents available options.",
		Example: heredoc.Doc(`
			swagger2har init
			swagger2har init --format toml --out swagger2har.toml
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Format:     strings.ToLower(strings.TrimSpace(format)),
				Force:      force,
				Verbose:    verbose,
				stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "", "Where to write the sample config file (default swagger2har.yaml or swagger2har.toml)")
	cmd.Flags().String("format", "yaml", "Sample config format (yaml|toml)")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	var content string
	switch cfg.Format {
	case "", "yaml", "yml":
		content = sampleConfigYAML
	case "toml":
		content = sampleConfigTOML
	default:
		return usageErrorf("init: unsupported --format %q (allowed: yaml, toml)", cfg.Format)
	}

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "swagger2har.yaml"
		if cfg.Format == "toml" {
			out = "swagger2har.toml"
		}
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return usageErrorf("init: %q already exists (use --force to overwrite)", absPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return usageErrorf("init: cannot create parent directory: %v", err)
	}

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return usageErrorf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return usageErrorf("init: cannot place file at %s: %v", absPath, err)
	}
	stdout, _ := writers(cfg.stdout, nil)
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
var sampleConfigYAML = heredoc.Doc(`
	# swagger2har configuration (YAML)
	# All fields are optional. Command-line flags override config values.

	# Path or URL to the Swagger/OpenAPI document (http/https or local file).
	# input: ./openapi.yaml

	# Output formats for generate (har|http|json).
	# formats: [har, http]

	# Output directory. When omitted, derived from the document title.
	# out: ./requests

	# Only include operations with these tags (comma-separated or list).
	# includeTags: [public,read]

	# Exclude operations with these tags (comma-separated or list).
	# excludeTags: [internal]

	# Only include these HTTP methods and paths (regular expressions).
	# methods: [get, post]
	# paths: ["^/users"]

	# Index of the server used as base URL and server variable overrides.
	# server: 0
	# serverVariables:
	#   region: eu

	# Parameter values by name. Anything missing is synthesized from its schema.
	# variables:
	#   userId: 42
	#   tags: [a, b]

	# Request bodies keyed by operationId or "METHOD /path".
	# bodies:
	#   createUser: {name: Ada}

	# Preferred request body content type.
	# contentType: application/json

	# Credentials per security scheme: a token, or username/password for basic.
	# credentials:
	#   bearerAuth: abc123
	#   basicAuth: {username: ada, password: secret}

	# Use declared examples and defaults before synthesizing values.
	# preferExamples: false

	# Recursion budget for nested schemas and seed for randomized values.
	# maxDepth: 4
	# seed: 1

	# Render unresolved $refs as null instead of failing.
	# lenientRefs: false

	# Also write one example per component schema.
	# examples: false

	# Preview planned outputs without writing files.
	# dryRun: false

	# Overwrite non-empty output directory.
	# force: false

	# Enable verbose logging.
	# verbose: false
`)

// sampleConfigTOML carries the same options as sampleConfigYAML.
var sampleConfigTOML = heredoc.Doc(`
	# swagger2har configuration (TOML)
	# All fields are optional. Command-line flags override config values.

	# input = "./openapi.yaml"
	# formats = ["har", "http"]
	# out = "./requests"
	# includeTags = ["public", "read"]
	# excludeTags = ["internal"]
	# methods = ["get", "post"]
	# paths = ["^/users"]
	# server = 0
	# contentType = "application/json"
	# preferExamples = false
	# maxDepth = 4
	# seed = 1
	# lenientRefs = false
	# examples = false
	# dryRun = false
	# force = false
	# verbose = false

	# [serverVariables]
	# region = "eu"

	# [variables]
	# userId = 42

	# [bodies.createUser]
	# name = "Ada"

	# [credentials]
	# bearerAuth = "abc123"
	# basicAuth = { username = "ada", password = "secret" }
`)
