package cli

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mark3labs/swagger2har/internal/emitter"
	"github.com/mark3labs/swagger2har/internal/example"
	"github.com/mark3labs/swagger2har/internal/request"
	"github.com/mark3labs/swagger2har/internal/spec"
)

// loadDocument loads, converts and normalizes the input document with the
// configured operation filters applied.
func loadDocument(ctx context.Context, cfg *SynthesisConfig, logger *zap.Logger) (*spec.Document, error) {
	doc, raw, err := spec.Load(ctx, cfg.Input, spec.WithLogger(logger))
	if err != nil {
		return nil, specUsageError(err)
	}

	methods := make([]spec.HttpMethod, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		if hm, ok := spec.ParseMethod(m); ok {
			methods = append(methods, hm)
		}
	}
	model, err := spec.BuildDocument(ctx, doc, raw,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
		spec.WithMethods(methods),
		spec.WithPathPatterns(cfg.Paths),
		spec.WithBuildLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	logger.Debug("document loaded",
		zap.String("title", model.Title),
		zap.Int("operations", len(model.Operations)),
		zap.Int("schemas", len(model.SchemaNames)),
	)
	return model, nil
}

func exampleOptions(cfg *SynthesisConfig) []example.Option {
	opts := []example.Option{example.WithPreferExamples(cfg.PreferExamples)}
	if cfg.MaxDepth > 0 {
		opts = append(opts, example.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.Seed != nil {
		opts = append(opts, example.WithSeed(*cfg.Seed))
	}
	return opts
}

func newSynthesizer(doc *spec.Document, cfg *SynthesisConfig, logger *zap.Logger) *request.Synthesizer {
	return request.NewSynthesizer(
		request.WithSecuritySchemes(doc.SecuritySchemes),
		request.WithExampleOptions(exampleOptions(cfg)...),
		request.WithLogger(logger),
		request.WithStrictRefs(!cfg.LenientRefs),
	)
}

// selectServer picks the server at index from the operation's effective
// server list, falling back to the first one when index is out of range.
func selectServer(op *spec.Operation, doc *spec.Document, index int, logger *zap.Logger) *spec.Server {
	servers := op.Servers
	if len(servers) == 0 {
		servers = doc.Servers
	}
	if len(servers) == 0 {
		return nil
	}
	if index >= len(servers) {
		logger.Warn("server index out of range, using the first server",
			zap.String("operation", op.ID), zap.Int("index", index), zap.Int("servers", len(servers)))
		index = 0
	}
	return &servers[index]
}

func variablesFor(op *spec.Operation, cfg *SynthesisConfig) request.Variables {
	vars := request.Variables{
		Parameters:  cfg.Variables,
		Server:      cfg.ServerVariables,
		ContentType: cfg.ContentType,
	}
	for _, key := range []string{op.OperationID, op.ID} {
		if key == "" {
			continue
		}
		if body, ok := cfg.Bodies[key]; ok {
			vars.Body, vars.HasBody = body, true
			break
		}
	}
	return vars
}

func synthesizeOne(doc *spec.Document, op *spec.Operation, synth *request.Synthesizer, cfg *SynthesisConfig, logger *zap.Logger) (*request.Request, error) {
	server := selectServer(op, doc, cfg.Server, logger)
	return synth.Synthesize(op, server, variablesFor(op, cfg), cfg.Credentials)
}

// synthesizeAll builds one entry per operation. Operations that fail are
// logged and skipped; the count of failures is returned.
func synthesizeAll(doc *spec.Document, cfg *SynthesisConfig, logger *zap.Logger) ([]emitter.Entry, int) {
	synth := newSynthesizer(doc, cfg, logger)
	entries := make([]emitter.Entry, 0, len(doc.Operations))
	failed := 0
	for i := range doc.Operations {
		op := &doc.Operations[i]
		req, err := synthesizeOne(doc, op, synth, cfg, logger)
		if err != nil {
			failed++
			logger.Warn("skipping operation", zap.String("operation", op.ID), zap.Error(err))
			continue
		}
		entries = append(entries, emitter.Entry{
			ID:          op.ID,
			OperationID: op.OperationID,
			Summary:     op.Summary,
			Description: op.Description,
			Tags:        op.Tags,
			Request:     req,
		})
	}
	return entries, failed
}

// schemaExamples generates one example per component schema in declaration
// order. Schemas whose refs cannot be resolved are skipped.
func schemaExamples(doc *spec.Document, cfg *SynthesisConfig, logger *zap.Logger) []emitter.SchemaExample {
	gen := example.NewGenerator(exampleOptions(cfg)...)
	out := make([]emitter.SchemaExample, 0, len(doc.SchemaNames))
	for _, name := range doc.SchemaNames {
		v, err := gen.Generate(doc.Schemas[name])
		if err != nil {
			logger.Warn("skipping schema example", zap.String("schema", name), zap.Error(err))
			continue
		}
		out = append(out, emitter.SchemaExample{Name: name, Value: v, Schema: doc.Schemas[name]})
	}
	return out
}

func findOperation(doc *spec.Document, key string) (*spec.Operation, error) {
	if op, ok := doc.FindOperation(key); ok {
		return op, nil
	}
	ids := make([]string, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		if op.OperationID != "" {
			ids = append(ids, op.OperationID)
		} else {
			ids = append(ids, op.ID)
		}
	}
	return nil, usageErrorf("operation %q not found (available: %s)", key, strings.Join(ids, ", "))
}
