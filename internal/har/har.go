// Package har maps synthesized requests onto HTTP Archive (HAR 1.2)
// request objects and wraps them in exportable log documents.
package har

import (
	"encoding/json"
	"io"

	"github.com/mark3labs/swagger2har/internal/request"
)

const (
	Version     = "1.2"
	HTTPVersion = "HTTP/1.1"

	// StartedDateTime is stamped on every entry so that exports stay
	// byte-identical across runs.
	StartedDateTime = "1970-01-01T00:00:00.000Z"
)

// CreatorName and CreatorVersion identify the producing tool.
var (
	CreatorName    = "swagger2har"
	CreatorVersion = "dev"
)

type NameValue struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

type PostData struct {
	MimeType string      `json:"mimeType"`
	Text     string      `json:"text"`
	Params   []NameValue `json:"params,omitempty"`
}

type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []NameValue `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
	Comment     string      `json:"comment,omitempty"`
}

// FromRequest maps a synthesized request field by field. A nil request
// yields the zero Request.
func FromRequest(r *request.Request) Request {
	if r == nil {
		return Request{}
	}
	out := Request{
		Method:      r.Method,
		URL:         r.URL,
		HTTPVersion: HTTPVersion,
		Cookies:     toNameValues(r.Cookies),
		Headers:     toNameValues(r.Headers),
		QueryString: toNameValues(r.Query),
		HeadersSize: -1,
	}
	if r.Body != nil {
		out.PostData = &PostData{
			MimeType: r.Body.ContentType,
			Text:     string(r.Body.Data),
		}
		if len(r.Body.Params) > 0 {
			out.PostData.Params = toNameValues(r.Body.Params)
		}
		out.BodySize = len(r.Body.Data)
	}
	return out
}

// ToRequest is the inverse of FromRequest.
func ToRequest(h Request) *request.Request {
	out := &request.Request{
		Method:  h.Method,
		URL:     h.URL,
		Headers: toPairs(h.Headers),
		Query:   toPairs(h.QueryString),
		Cookies: toPairs(h.Cookies),
	}
	if h.PostData != nil {
		out.Body = &request.Body{
			ContentType: h.PostData.MimeType,
			Data:        []byte(h.PostData.Text),
			Params:      toPairs(h.PostData.Params),
		}
	}
	return out
}

// toNameValues never returns nil; HAR requires arrays.
func toNameValues(pairs []request.Pair) []NameValue {
	out := make([]NameValue, len(pairs))
	for i, p := range pairs {
		out[i] = NameValue{Name: p.Name, Value: p.Value}
	}
	return out
}

func toPairs(nvs []NameValue) []request.Pair {
	if len(nvs) == 0 {
		return nil
	}
	out := make([]request.Pair, len(nvs))
	for i, nv := range nvs {
		out[i] = request.Pair{Name: nv.Name, Value: nv.Value}
	}
	return out
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Response is a placeholder; synthesized entries are never executed.
type Response struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []NameValue `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
}

type Timings struct {
	Send    int `json:"send"`
	Wait    int `json:"wait"`
	Receive int `json:"receive"`
}

type Entry struct {
	StartedDateTime string   `json:"startedDateTime"`
	Time            int      `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Cache           struct{} `json:"cache"`
	Timings         Timings  `json:"timings"`
	Comment         string   `json:"comment,omitempty"`
}

// NewEntry wraps req with an empty response. comment usually names the
// operation.
func NewEntry(req Request, comment string) Entry {
	return Entry{
		StartedDateTime: StartedDateTime,
		Request:         req,
		Response: Response{
			HTTPVersion: HTTPVersion,
			Cookies:     []NameValue{},
			Headers:     []NameValue{},
			Content:     Content{MimeType: "x-unknown"},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Comment: comment,
	}
}

type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
}

// Document is the top-level HAR file.
type Document struct {
	Log Log `json:"log"`
}

func NewLog(entries ...Entry) *Document {
	if entries == nil {
		entries = []Entry{}
	}
	return &Document{Log: Log{
		Version: Version,
		Creator: Creator{Name: CreatorName, Version: CreatorVersion},
		Entries: entries,
	}}
}

// Encode writes d as indented JSON without HTML escaping.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
