package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/swagger2har/internal/emitter"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	SynthesisConfig

	Formats  []string
	Out      string
	Examples bool
	DryRun   bool
	Force    bool

	stdout io.Writer
	stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Formats: []string{string(emitter.FormatHAR)}}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Synthesize requests for every operation of an OpenAPI/Swagger document",
		Long: heredoc.Doc(`
			Synthesize one concrete HTTP request per operation of an OpenAPI/Swagger
			document and write them as a HAR log, a .http file or JSON documents.

			Parameter values, server variables and credentials come from flags or the
			config file; anything missing is filled with schema-derived examples.
		`),
		Example: heredoc.Doc(`
			swagger2har generate --input spec.yaml --out ./out
			swagger2har generate --input spec.yaml --format har,http --credential bearerAuth=abc123
			swagger2har --config swagger2har.yaml generate --force --dry-run
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.stdout = cmd.OutOrStdout()
			cfg.stderr = cmd.ErrOrStderr()
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	addSynthesisFlags(flags)
	flags.StringSlice("format", nil, "Output formats (har|http|json); defaults to har")
	flags.String("out", "", "Output directory (derived from the document title when omitted)")
	flags.Bool("examples", false, "Also write an example per component schema")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := resolveConfigPath(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	raw, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		handled, err := cfg.applyKey(key, value)
		if err != nil {
			return err
		}
		if handled {
			continue
		}
		switch normalizeKey(key) {
		case "format", "formats":
			cfg.Formats, err = valueAsStringSlice(value)
		case "out":
			cfg.Out, err = valueAsString(value)
		case "examples":
			cfg.Examples, err = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "force":
			cfg.Force, err = valueAsBool(value)
		default:
			return usageErrorf("config file %q: unknown field %q", path, key)
		}
		if err != nil {
			return usageErrorf("config field %q: %v", key, err)
		}
	}
	return nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if err := cfg.applyFlags(flags); err != nil {
		return err
	}
	var err error
	if flags.Changed("format") {
		cfg.Formats, err = flags.GetStringSlice("format")
	}
	if err == nil && flags.Changed("out") {
		cfg.Out, err = flags.GetString("out")
	}
	if err == nil && flags.Changed("examples") {
		cfg.Examples, err = flags.GetBool("examples")
	}
	if err == nil && flags.Changed("dry-run") {
		cfg.DryRun, err = flags.GetBool("dry-run")
	}
	if err == nil && flags.Changed("force") {
		cfg.Force, err = flags.GetBool("force")
	}
	return err
}

func (c *GenerateConfig) normalize() {
	c.SynthesisConfig.normalize()
	c.Out = strings.TrimSpace(c.Out)
	formats := sanitizeTags(c.Formats)
	for i := range formats {
		formats[i] = strings.ToLower(formats[i])
	}
	c.Formats = formats
}

func (c *GenerateConfig) validate() error {
	if err := c.SynthesisConfig.validate("generate"); err != nil {
		return err
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{string(emitter.FormatHAR)}
	}
	for _, f := range c.Formats {
		if _, ok := emitter.ParseFormat(f); !ok {
			return usageErrorf("generate: unsupported --format %q (allowed: har, http, json)", f)
		}
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	stdout, stderr := writers(cfg.stdout, cfg.stderr)
	logger := newLogger(stderr, cfg.Verbose)
	defer func() { _ = logger.Sync() }()

	doc, err := loadDocument(ctx, &cfg.SynthesisConfig, logger)
	if err != nil {
		return err
	}

	entries, failed := synthesizeAll(doc, &cfg.SynthesisConfig, logger)
	bundle := &emitter.Bundle{Title: doc.Title, Version: doc.Version, Entries: entries}
	if cfg.Examples {
		bundle.Examples = schemaExamples(doc, &cfg.SynthesisConfig, logger)
	}

	outDir := cfg.Out
	if outDir == "" {
		outDir = deriveOutDir(doc.Title)
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	formats := make([]emitter.Format, 0, len(cfg.Formats))
	for _, f := range cfg.Formats {
		format, _ := emitter.ParseFormat(f)
		formats = append(formats, format)
	}
	res, err := emitter.Emit(ctx, bundle, emitter.Options{
		OutDir:   outDir,
		Formats:  formats,
		Examples: cfg.Examples,
		Force:    cfg.Force,
		DryRun:   cfg.DryRun,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}

	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(stdout, absOut, paths)
	} else {
		fmt.Fprintf(stdout, "Wrote %d requests to %s\n", len(entries), absOut)
	}
	if failed > 0 {
		fmt.Fprintf(stdout, "Skipped %d operations (run with --verbose for details)\n", failed)
	}
	return nil
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return stdout, stderr
}

func printPlan(w io.Writer, outDir string, relPaths []string) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(w, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return usageErrorf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg)
	}
	return err
}

// deriveOutDir turns a document title into a directory name.
func deriveOutDir(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	parts := strings.Fields(repl.Replace(t))
	if len(parts) == 0 {
		return "requests"
	}
	return strings.Join(parts, "-") + "-requests"
}
