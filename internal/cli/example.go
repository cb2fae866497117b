package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/swagger2har/internal/example"
	"github.com/mark3labs/swagger2har/internal/request"
	"github.com/mark3labs/swagger2har/internal/spec"
)

// ExampleConfig captures the inputs of the example command.
type ExampleConfig struct {
	Input          string
	Schema         string
	SchemaFile     string
	Operation      string
	ContentType    string
	Mode           string
	Output         string
	PreferExamples bool
	MaxDepth       int
	Seed           *uint64
	Verbose        bool

	stdout io.Writer
	stderr io.Writer
}

var exampleRunner = runExample

func newExampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "example",
		Short: "Generate an example value from a JSON Schema",
		Long: heredoc.Doc(`
			Generate a deterministic example value for a component schema, for the
			request body of an operation, or for a standalone schema file.
		`),
		Example: heredoc.Doc(`
			swagger2har example --input spec.yaml --schema Pet
			swagger2har example --input spec.yaml --operation createPet --mode request
			swagger2har example --schema-file pet.schema.json --output yaml
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveExampleConfig(cmd)
			if err != nil {
				return err
			}
			cfg.stdout = cmd.OutOrStdout()
			cfg.stderr = cmd.ErrOrStderr()
			return exampleRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document (\"-\" reads stdin)")
	flags.String("schema", "", "Name of a component schema")
	flags.String("schema-file", "", "Path to a standalone JSON Schema (JSON or YAML)")
	flags.String("operation", "", "Operation whose request body schema is used (operationId or \"METHOD /path\")")
	flags.String("content-type", "", "Request body media type to pick for --operation")
	flags.String("mode", "any", "Property visibility (any|request|response)")
	flags.String("output", "json", "Output encoding (json|yaml)")
	flags.Bool("prefer-examples", false, "Use declared examples and defaults before synthesizing values")
	flags.Int("max-depth", 0, "Recursion budget for nested and self-referential schemas")
	flags.Uint64("seed", 0, "Seed for randomized example values")

	return cmd
}

func resolveExampleConfig(cmd *cobra.Command) (*ExampleConfig, error) {
	flags := cmd.Flags()
	cfg := &ExampleConfig{}
	var err error
	get := func(name string, dst *string) {
		if err == nil {
			*dst, err = flags.GetString(name)
			*dst = strings.TrimSpace(*dst)
		}
	}
	get("input", &cfg.Input)
	get("schema", &cfg.Schema)
	get("schema-file", &cfg.SchemaFile)
	get("operation", &cfg.Operation)
	get("content-type", &cfg.ContentType)
	get("mode", &cfg.Mode)
	get("output", &cfg.Output)
	if err == nil {
		cfg.PreferExamples, err = flags.GetBool("prefer-examples")
	}
	if err == nil {
		cfg.MaxDepth, err = flags.GetInt("max-depth")
	}
	if err == nil && flags.Changed("seed") {
		var seed uint64
		seed, err = flags.GetUint64("seed")
		cfg.Seed = &seed
	}
	if err == nil {
		cfg.Verbose, err = flags.GetBool("verbose")
	}
	if err != nil {
		return nil, err
	}
	cfg.Mode = strings.ToLower(cfg.Mode)
	cfg.Output = strings.ToLower(cfg.Output)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ExampleConfig) validate() error {
	sources := 0
	for _, s := range []string{c.Schema, c.SchemaFile, c.Operation} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return newUsageError("example: exactly one of --schema, --schema-file or --operation is required")
	}
	if c.SchemaFile == "" && c.Input == "" {
		return newUsageError("example: --input is required with --schema and --operation")
	}
	if _, ok := parseMode(c.Mode); !ok {
		return usageErrorf("example: unsupported --mode %q (allowed: any, request, response)", c.Mode)
	}
	if c.Output != "json" && c.Output != "yaml" {
		return usageErrorf("example: unsupported --output %q (allowed: json, yaml)", c.Output)
	}
	if c.MaxDepth < 0 {
		return newUsageError("example: --max-depth must not be negative")
	}
	return nil
}

func parseMode(s string) (example.Mode, bool) {
	switch s {
	case "", "any":
		return example.ModeAny, true
	case "request":
		return example.ModeRequest, true
	case "response":
		return example.ModeResponse, true
	}
	return example.ModeAny, false
}

func runExample(ctx context.Context, cfg *ExampleConfig) error {
	stdout, stderr := writers(cfg.stdout, cfg.stderr)
	logger := newLogger(stderr, cfg.Verbose)
	defer func() { _ = logger.Sync() }()

	schema, err := cfg.schema(ctx, logger)
	if err != nil {
		return err
	}

	mode, _ := parseMode(cfg.Mode)
	opts := []example.Option{
		example.WithMode(mode),
		example.WithPreferExamples(cfg.PreferExamples),
	}
	if cfg.MaxDepth > 0 {
		opts = append(opts, example.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.Seed != nil {
		opts = append(opts, example.WithSeed(*cfg.Seed))
	}
	value, err := example.Generate(schema, opts...)
	if err != nil {
		return fmt.Errorf("generate example: %w", err)
	}

	out, err := encodeExample(cfg.Output, value, schema)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func (c *ExampleConfig) schema(ctx context.Context, logger *zap.Logger) (*spec.Schema, error) {
	if c.SchemaFile != "" {
		data, err := os.ReadFile(c.SchemaFile)
		if err != nil {
			return nil, usageErrorf("read schema file %q: %v", c.SchemaFile, err)
		}
		s, err := spec.DecodeSchema(data)
		if err != nil {
			return nil, usageErrorf("decode schema file %q: %v", c.SchemaFile, err)
		}
		return s, nil
	}

	doc, err := loadDocument(ctx, &SynthesisConfig{Input: c.Input}, logger)
	if err != nil {
		return nil, err
	}
	if c.Schema != "" {
		s, ok := doc.Schemas[c.Schema]
		if !ok {
			return nil, usageErrorf("schema %q not found (available: %s)", c.Schema, strings.Join(doc.SchemaNames, ", "))
		}
		return s, nil
	}

	op, err := findOperation(doc, c.Operation)
	if err != nil {
		return nil, err
	}
	if op.RequestBody == nil || len(op.RequestBody.Content) == 0 {
		return nil, usageErrorf("operation %q has no request body", op.ID)
	}
	media := op.RequestBody.Content[0]
	if c.ContentType != "" {
		found := false
		for _, m := range op.RequestBody.Content {
			if strings.EqualFold(m.ContentType, c.ContentType) {
				media, found = m, true
				break
			}
		}
		if !found {
			return nil, usageErrorf("operation %q does not accept %q", op.ID, c.ContentType)
		}
	}
	if media.Schema == nil {
		return nil, usageErrorf("operation %q: %s body has no schema", op.ID, media.ContentType)
	}
	return media.Schema, nil
}

func encodeExample(output string, value any, schema *spec.Schema) ([]byte, error) {
	var buf bytes.Buffer
	if output == "yaml" {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(request.Ordered(value, schema)); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := request.EncodeJSON(value, schema, "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
