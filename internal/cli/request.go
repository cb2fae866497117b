package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/mark3labs/swagger2har/internal/emitter"
)

// RequestConfig captures the inputs of the request command.
type RequestConfig struct {
	SynthesisConfig

	Operation string
	Format    string
	Body      any
	HasBody   bool

	stdout io.Writer
	stderr io.Writer
}

var requestRunner = runRequest

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request <operation>",
		Short: "Synthesize and print the request for a single operation",
		Long: heredoc.Doc(`
			Synthesize the request for one operation, selected by operationId or by
			"METHOD /path", and print it as a HAR request object, JSON or .http text.
		`),
		Example: heredoc.Doc(`
			swagger2har request getUser --input spec.yaml
			swagger2har request "POST /pets" --input spec.yaml --body '{"name": "rex"}' --format http
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveRequestConfig(cmd, args[0])
			if err != nil {
				return err
			}
			cfg.stdout = cmd.OutOrStdout()
			cfg.stderr = cmd.ErrOrStderr()
			return requestRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	addSynthesisFlags(flags)
	flags.String("format", "har", "Output format (har|json|http)")
	flags.String("body", "", "Request body (JSON or YAML) replacing the generated one")

	return cmd
}

func resolveRequestConfig(cmd *cobra.Command, operation string) (*RequestConfig, error) {
	cfg := &RequestConfig{Operation: strings.TrimSpace(operation), Format: "har"}

	configPath, err := resolveConfigPath(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		cfg.ConfigPath = configPath
		raw, err := loadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		for _, key := range sortedKeys(raw) {
			handled, err := cfg.applyKey(key, raw[key])
			if err != nil {
				return nil, err
			}
			if !handled && !generateOnlyKey(key) {
				return nil, usageErrorf("config file %q: unknown field %q", configPath, key)
			}
		}
	}

	flags := cmd.Flags()
	if err := cfg.applyFlags(flags); err != nil {
		return nil, err
	}
	if flags.Changed("format") {
		if cfg.Format, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("body") {
		body, err := flags.GetString("body")
		if err != nil {
			return nil, err
		}
		cfg.Body, cfg.HasBody = parseScalar(body), true
	}

	cfg.normalize()
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if err := cfg.validate("request"); err != nil {
		return nil, err
	}
	if cfg.Operation == "" {
		return nil, newUsageError("request: operation is required")
	}
	if _, ok := emitter.ParseFormat(cfg.Format); !ok {
		return nil, usageErrorf("request: unsupported --format %q (allowed: har, json, http)", cfg.Format)
	}
	return cfg, nil
}

// generateOnlyKey reports config keys that belong to generate and are
// ignored here so that one config file can serve both commands.
func generateOnlyKey(key string) bool {
	switch normalizeKey(key) {
	case "format", "formats", "out", "examples", "dryrun", "force":
		return true
	}
	return false
}

func runRequest(ctx context.Context, cfg *RequestConfig) error {
	stdout, stderr := writers(cfg.stdout, cfg.stderr)
	logger := newLogger(stderr, cfg.Verbose)
	defer func() { _ = logger.Sync() }()

	doc, err := loadDocument(ctx, &cfg.SynthesisConfig, logger)
	if err != nil {
		return err
	}
	op, err := findOperation(doc, cfg.Operation)
	if err != nil {
		return err
	}

	synth := newSynthesizer(doc, &cfg.SynthesisConfig, logger)
	vars := variablesFor(op, &cfg.SynthesisConfig)
	if cfg.HasBody {
		vars.Body, vars.HasBody = cfg.Body, true
	}
	req, err := synth.Synthesize(op, selectServer(op, doc, cfg.Server, logger), vars, cfg.Credentials)
	if err != nil {
		return fmt.Errorf("request %s: %w", op.ID, err)
	}

	format, _ := emitter.ParseFormat(cfg.Format)
	out, err := emitter.RenderEntry(format, &emitter.Entry{
		ID:          op.ID,
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Request:     req,
	})
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}
