package spec

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// declOrder answers "in which order were the keys of this mapping written"
// for a raw YAML or JSON document. kin-openapi decodes mappings into Go
// maps, which drops that information.
type declOrder struct {
	root *yaml.Node
}

func newDeclOrder(raw []byte) *declOrder {
	if len(raw) == 0 {
		return nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	return &declOrder{root: doc.Content[0]}
}

// keys returns the mapping keys found at the JSON pointer ptr ("/a/b").
func (o *declOrder) keys(ptr string) []string {
	if o == nil || ptr == "" {
		return nil
	}
	n := lookupPointer(o.root, ptr)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, n.Content[i].Value)
	}
	return out
}

// lookupPointer walks a YAML node tree following a JSON pointer. Both "#/a"
// and "/a" forms are accepted; "" and "#" address the root.
func lookupPointer(root *yaml.Node, ptr string) *yaml.Node {
	ptr = strings.TrimPrefix(ptr, "#")
	if ptr == "" {
		return deref(root)
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil
	}
	cur := deref(root)
	for _, tok := range strings.Split(ptr[1:], "/") {
		tok = unescapePointerToken(tok)
		if cur == nil {
			return nil
		}
		switch cur.Kind {
		case yaml.MappingNode:
			var next *yaml.Node
			for i := 0; i+1 < len(cur.Content); i += 2 {
				if cur.Content[i].Value == tok {
					next = cur.Content[i+1]
					break
				}
			}
			cur = deref(next)
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(cur.Content) {
				return nil
			}
			cur = deref(cur.Content[idx])
		default:
			return nil
		}
	}
	return cur
}

func unescapePointerToken(tok string) string {
	if s, err := url.PathUnescape(tok); err == nil {
		tok = s
	}
	tok = strings.ReplaceAll(tok, "~1", "/")
	return strings.ReplaceAll(tok, "~0", "~")
}

func escapePointerToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	return strings.ReplaceAll(tok, "/", "~1")
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// orderKeys returns the keys of m, first those listed in declared (in that
// order), then the rest sorted.
func orderKeys[V any](m map[string]V, declared []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range declared {
		if _, ok := m[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	rest := make([]string, 0, len(m)-len(out))
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
