package cli

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/swagger2har/internal/request"
	"github.com/mark3labs/swagger2har/internal/spec"
)

// SynthesisConfig holds the inputs shared by every command that loads a
// document and synthesizes requests from it.
type SynthesisConfig struct {
	Input           string
	IncludeTags     []string
	ExcludeTags     []string
	Methods         []string
	Paths           []string
	Server          int
	ServerVariables map[string]string
	Variables       map[string]any
	// Bodies maps an operationId or "METHOD /path" to a request body.
	Bodies         map[string]any
	ContentType    string
	Credentials    request.Credentials
	PreferExamples bool
	MaxDepth       int
	Seed           *uint64
	LenientRefs    bool
	ConfigPath     string
	Verbose        bool
}

func addSynthesisFlags(flags *pflag.FlagSet) {
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document (\"-\" reads stdin)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching these regular expressions")
	flags.Int("server", 0, "Index of the server to use as base URL")
	flags.StringToString("server-var", nil, "Server variable override (name=value)")
	flags.StringToString("var", nil, "Parameter value (name=value, value parsed as YAML)")
	flags.StringToString("credential", nil, "Credential per security scheme (scheme=token, or scheme=user:password for basic)")
	flags.String("content-type", "", "Preferred request body content type")
	flags.Bool("prefer-examples", false, "Use declared examples and defaults before synthesizing values")
	flags.Int("max-depth", 0, "Recursion budget for nested and self-referential schemas")
	flags.Uint64("seed", 0, "Seed for randomized example values")
	flags.Bool("lenient-refs", false, "Render unresolved $refs as null instead of failing")
}

// loadConfigFile reads a YAML, JSON or TOML file into a generic map.
func loadConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usageErrorf("read config file %q: %v", path, err)
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, usageErrorf("parse config file %q: %v", path, err)
	}
	return raw, nil
}

// applyKey stores one config file entry. It reports false for keys it does
// not own.
func (c *SynthesisConfig) applyKey(key string, value any) (bool, error) {
	var err error
	switch normalizeKey(key) {
	case "input":
		c.Input, err = valueAsString(value)
	case "includetags":
		c.IncludeTags, err = valueAsStringSlice(value)
	case "excludetags":
		c.ExcludeTags, err = valueAsStringSlice(value)
	case "methods":
		c.Methods, err = valueAsStringSlice(value)
	case "paths":
		c.Paths, err = valueAsStringSlice(value)
	case "server":
		c.Server, err = valueAsInt(value)
	case "servervariables":
		c.ServerVariables, err = valueAsStringMap(value)
	case "variables":
		c.Variables, err = valueAsMap(value)
	case "bodies":
		c.Bodies, err = valueAsMap(value)
	case "contenttype":
		c.ContentType, err = valueAsString(value)
	case "credentials":
		c.Credentials, err = valueAsCredentials(value)
	case "preferexamples":
		c.PreferExamples, err = valueAsBool(value)
	case "maxdepth":
		c.MaxDepth, err = valueAsInt(value)
	case "seed":
		var n int
		n, err = valueAsInt(value)
		if err == nil {
			if n < 0 {
				err = fmt.Errorf("seed must not be negative")
			} else {
				seed := uint64(n)
				c.Seed = &seed
			}
		}
	case "lenientrefs":
		c.LenientRefs, err = valueAsBool(value)
	case "verbose":
		c.Verbose, err = valueAsBool(value)
	default:
		return false, nil
	}
	if err != nil {
		return true, usageErrorf("config field %q: %v", key, err)
	}
	return true, nil
}

func (c *SynthesisConfig) applyFlags(flags *pflag.FlagSet) error {
	var err error
	if flags.Changed("input") {
		c.Input, err = flags.GetString("input")
	}
	if err == nil && flags.Changed("include-tags") {
		c.IncludeTags, err = flags.GetStringSlice("include-tags")
	}
	if err == nil && flags.Changed("exclude-tags") {
		c.ExcludeTags, err = flags.GetStringSlice("exclude-tags")
	}
	if err == nil && flags.Changed("methods") {
		c.Methods, err = flags.GetStringSlice("methods")
	}
	if err == nil && flags.Changed("paths") {
		c.Paths, err = flags.GetStringSlice("paths")
	}
	if err == nil && flags.Changed("server") {
		c.Server, err = flags.GetInt("server")
	}
	if err == nil && flags.Changed("server-var") {
		var m map[string]string
		m, err = flags.GetStringToString("server-var")
		c.ServerVariables = mergeStrings(c.ServerVariables, m)
	}
	if err == nil && flags.Changed("var") {
		var m map[string]string
		m, err = flags.GetStringToString("var")
		if c.Variables == nil {
			c.Variables = make(map[string]any, len(m))
		}
		for k, v := range m {
			c.Variables[k] = parseScalar(v)
		}
	}
	if err == nil && flags.Changed("credential") {
		var m map[string]string
		m, err = flags.GetStringToString("credential")
		if c.Credentials == nil {
			c.Credentials = make(request.Credentials, len(m))
		}
		for k, v := range m {
			c.Credentials[k] = request.Credential{Value: v}
		}
	}
	if err == nil && flags.Changed("content-type") {
		c.ContentType, err = flags.GetString("content-type")
	}
	if err == nil && flags.Changed("prefer-examples") {
		c.PreferExamples, err = flags.GetBool("prefer-examples")
	}
	if err == nil && flags.Changed("max-depth") {
		c.MaxDepth, err = flags.GetInt("max-depth")
	}
	if err == nil && flags.Changed("seed") {
		var seed uint64
		seed, err = flags.GetUint64("seed")
		c.Seed = &seed
	}
	if err == nil && flags.Changed("lenient-refs") {
		c.LenientRefs, err = flags.GetBool("lenient-refs")
	}
	if err == nil && flags.Changed("verbose") {
		c.Verbose, err = flags.GetBool("verbose")
	}
	return err
}

func (c *SynthesisConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.ContentType = strings.TrimSpace(c.ContentType)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	c.Paths = sanitizeTags(c.Paths)
}

func (c *SynthesisConfig) validate(command string) error {
	if c.Input == "" {
		return usageErrorf("%s: --input is required (set via flag or config file)", command)
	}
	if overlap := intersect(c.IncludeTags, c.ExcludeTags); len(overlap) > 0 {
		return usageErrorf("%s: include/exclude tags overlap: %s", command, strings.Join(overlap, ", "))
	}
	for _, m := range c.Methods {
		if _, ok := spec.ParseMethod(m); !ok {
			return usageErrorf("%s: unsupported method %q", command, m)
		}
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return usageErrorf("%s: invalid --paths pattern %q: %v", command, p, err)
		}
	}
	if c.Server < 0 {
		return usageErrorf("%s: --server must not be negative", command)
	}
	if c.MaxDepth < 0 {
		return usageErrorf("%s: --max-depth must not be negative", command)
	}
	return nil
}

// resolveConfigPath returns the trimmed --config value.
func resolveConfigPath(flags *pflag.FlagSet) (string, error) {
	path, err := flags.GetString("config")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// parseScalar decodes a flag value as YAML so that numbers, booleans,
// lists and maps keep their type. Undecodable input stays a string.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

func mergeStrings(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

// valueAsInt accepts the integer shapes YAML and TOML decoders produce.
func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case uint64:
		if val > math.MaxInt {
			return 0, fmt.Errorf("integer %d out of range", val)
		}
		return int(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("expected integer, got %v", val)
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func valueAsMap(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	default:
		return nil, fmt.Errorf("expected mapping, got %T", v)
	}
}

func valueAsStringMap(v any) (map[string]string, error) {
	m, err := valueAsMap(v)
	if err != nil || m == nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for _, k := range sortedKeys(m) {
		switch val := m[k].(type) {
		case string:
			out[k] = val
		case int, int64, uint64, float64, bool:
			out[k] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("%s: expected scalar, got %T", k, m[k])
		}
	}
	return out, nil
}

// valueAsCredentials accepts either a token string or a mapping with
// value, username and password per scheme.
func valueAsCredentials(v any) (request.Credentials, error) {
	m, err := valueAsMap(v)
	if err != nil || m == nil {
		return nil, err
	}
	out := make(request.Credentials, len(m))
	for _, scheme := range sortedKeys(m) {
		switch val := m[scheme].(type) {
		case string:
			out[scheme] = request.Credential{Value: val}
		case map[string]any:
			var cred request.Credential
			for key, field := range val {
				str, err := valueAsString(field)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", scheme, key, err)
				}
				switch normalizeKey(key) {
				case "value", "token":
					cred.Value = str
				case "username", "user":
					cred.Username = str
				case "password":
					cred.Password = str
				default:
					return nil, fmt.Errorf("%s: unknown credential field %q", scheme, key)
				}
			}
			out[scheme] = cred
		default:
			return nil, fmt.Errorf("%s: expected string or mapping, got %T", scheme, m[scheme])
		}
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}
