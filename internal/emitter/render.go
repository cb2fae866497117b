package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/swagger2har/internal/har"
)

func renderHAR(b *Bundle) ([]byte, error) {
	entries := make([]har.Entry, 0, len(b.Entries))
	for i := range b.Entries {
		e := &b.Entries[i]
		entries = append(entries, har.NewEntry(har.FromRequest(e.Request), entryName(e)))
	}
	var buf bytes.Buffer
	if err := har.NewLog(entries...).Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderHTTP writes the requests in the plain .http format understood by
// REST client editors.
func renderHTTP(b *Bundle) string {
	var sb strings.Builder
	if title := strings.TrimSpace(b.Title); title != "" {
		sb.WriteString("# ")
		sb.WriteString(title)
		if v := strings.TrimSpace(b.Version); v != "" {
			sb.WriteString(" ")
			sb.WriteString(v)
		}
		sb.WriteString("\n\n")
	}
	for i := range b.Entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		renderHTTPEntry(&sb, &b.Entries[i])
	}
	return sb.String()
}

func renderHTTPEntry(sb *strings.Builder, e *Entry) {
	title := e.Summary
	if title == "" {
		title = e.ID
	}
	sb.WriteString("### ")
	sb.WriteString(title)
	sb.WriteString("\n")
	if e.OperationID != "" {
		sb.WriteString("# @name ")
		sb.WriteString(e.OperationID)
		sb.WriteString("\n")
	}
	for _, line := range strings.Split(strings.TrimSpace(e.Description), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sb.WriteString("# ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	req := e.Request
	if req == nil {
		return
	}
	sb.WriteString(req.Method)
	sb.WriteString(" ")
	sb.WriteString(req.URL)
	sb.WriteString("\n")
	for _, h := range req.Headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\n")
	}
	if req.Body == nil || len(req.Body.Data) == 0 {
		return
	}
	sb.WriteString("\n")
	if !utf8.Valid(req.Body.Data) {
		sb.WriteString("# <binary body omitted>\n")
		return
	}
	sb.Write(req.Body.Data)
	if !bytes.HasSuffix(req.Body.Data, []byte("\n")) {
		sb.WriteString("\n")
	}
}

type requestDocument struct {
	ID          string      `json:"id"`
	OperationID string      `json:"operationId,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Request     har.Request `json:"request"`
}

func renderRequestJSON(e *Entry) ([]byte, error) {
	return marshalIndent(requestDocument{
		ID:          e.ID,
		OperationID: e.OperationID,
		Summary:     e.Summary,
		Tags:        e.Tags,
		Request:     har.FromRequest(e.Request),
	})
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderEntry renders a single entry in the given format: a HAR request
// object, a request document or an .http section.
func RenderEntry(format Format, e *Entry) ([]byte, error) {
	switch format {
	case FormatHTTP:
		var sb strings.Builder
		renderHTTPEntry(&sb, e)
		return []byte(sb.String()), nil
	case FormatJSON:
		return renderRequestJSON(e)
	case FormatHAR:
		return marshalIndent(har.FromRequest(e.Request))
	default:
		return nil, fmt.Errorf("emitter: unsupported format %q", format)
	}
}
