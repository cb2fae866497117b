package har

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mark3labs/swagger2har/internal/request"
	"github.com/mark3labs/swagger2har/internal/spec"
)

func sampleRequest() *request.Request {
	return &request.Request{
		Method: "POST",
		URL:    "https://api.example.com/pets?limit=10",
		Headers: []request.Pair{
			{Name: "Authorization", Value: "Bearer abc123"},
			{Name: "Content-Type", Value: "application/x-www-form-urlencoded"},
		},
		Query:   []request.Pair{{Name: "limit", Value: "10"}},
		Cookies: []request.Pair{{Name: "sid", Value: "s1"}},
		Body: &request.Body{
			ContentType: "application/x-www-form-urlencoded",
			Data:        []byte("name=rex"),
			Params:      []request.Pair{{Name: "name", Value: "rex"}},
		},
	}
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	got := FromRequest(sampleRequest())
	want := Request{
		Method:      "POST",
		URL:         "https://api.example.com/pets?limit=10",
		HTTPVersion: "HTTP/1.1",
		Cookies:     []NameValue{{Name: "sid", Value: "s1"}},
		Headers: []NameValue{
			{Name: "Authorization", Value: "Bearer abc123"},
			{Name: "Content-Type", Value: "application/x-www-form-urlencoded"},
		},
		QueryString: []NameValue{{Name: "limit", Value: "10"}},
		PostData: &PostData{
			MimeType: "application/x-www-form-urlencoded",
			Text:     "name=rex",
			Params:   []NameValue{{Name: "name", Value: "rex"}},
		},
		HeadersSize: -1,
		BodySize:    8,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromRequest mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRequest_NoBodyUsesEmptyArrays(t *testing.T) {
	t.Parallel()

	got := FromRequest(&request.Request{Method: "GET", URL: "/users/0"})
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"method": "GET",
		"url": "/users/0",
		"httpVersion": "HTTP/1.1",
		"cookies": [],
		"headers": [],
		"queryString": [],
		"headersSize": -1,
		"bodySize": 0
	}`, string(data))

	assert.Equal(t, Request{}, FromRequest(nil))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	orig := sampleRequest()
	data, err := json.Marshal(FromRequest(orig))
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(data, &decoded))
	if diff := cmp.Diff(orig, ToRequest(decoded)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_Synthesized(t *testing.T) {
	t.Parallel()

	op := &spec.Operation{
		ID:     "POST /users/{id}",
		Method: spec.POST,
		Path:   "/users/{id}",
		Parameters: []spec.Parameter{
			{Name: "id", In: spec.InPath, Required: true, Schema: &spec.Schema{Types: []string{"integer"}}},
			{Name: "verbose", In: spec.InQuery, Required: true, Schema: &spec.Schema{Types: []string{"boolean"}}},
		},
		RequestBody: &spec.RequestBody{Content: []spec.MediaType{{
			ContentType: "application/json",
			Schema: &spec.Schema{
				Types:      []string{"object"},
				Properties: map[string]*spec.Schema{"name": {Types: []string{"string"}}},
			},
		}}},
		Security: []spec.SecurityRequirement{{{Scheme: "bearer"}}},
	}
	schemes := map[string]*spec.SecurityScheme{"bearer": {Type: spec.HTTPAuth, Scheme: "bearer"}}
	synth := request.NewSynthesizer(request.WithSecuritySchemes(schemes))

	req, err := synth.Synthesize(op, &spec.Server{URL: "https://api.example.com"}, request.Variables{}, request.Credentials{"bearer": {Value: "abc123"}})
	require.NoError(t, err)

	back := ToRequest(FromRequest(req))
	assert.Equal(t, req.Method, back.Method)
	assert.Equal(t, req.URL, back.URL)
	assert.Equal(t, req.Headers, back.Headers)
	assert.Equal(t, req.Body, back.Body)
	assert.Equal(t, "https://api.example.com/users/0?verbose=true", back.URL)
}

func TestNewLog(t *testing.T) {
	t.Parallel()

	doc := NewLog(NewEntry(FromRequest(sampleRequest()), "createPet"))
	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	log := decoded["log"].(map[string]any)
	assert.Equal(t, "1.2", log["version"])
	assert.Equal(t, map[string]any{"name": CreatorName, "version": CreatorVersion}, log["creator"])

	entries := log["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, StartedDateTime, entry["startedDateTime"])
	assert.Equal(t, "createPet", entry["comment"])
	assert.Equal(t, "POST", entry["request"].(map[string]any)["method"])

	var empty bytes.Buffer
	require.NoError(t, NewLog().Encode(&empty))
	assert.Contains(t, empty.String(), `"entries": []`)
}

func drawPairs(t *rapid.T, label string) []request.Pair {
	n := rapid.IntRange(0, 4).Draw(t, label+"Count")
	if n == 0 {
		return nil
	}
	out := make([]request.Pair, n)
	for i := range out {
		out[i] = request.Pair{
			Name:  rapid.StringMatching(`[A-Za-z-]{1,10}`).Draw(t, label+"Name"),
			Value: rapid.String().Draw(t, label+"Value"),
		}
	}
	return out
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		req := &request.Request{
			Method:  rapid.SampledFrom([]string{"GET", "POST", "PUT", "DELETE"}).Draw(rt, "method"),
			URL:     rapid.StringMatching(`https://[a-z]{1,8}\.example\.com/[a-z/]{0,12}`).Draw(rt, "url"),
			Headers: drawPairs(rt, "header"),
			Query:   drawPairs(rt, "query"),
			Cookies: drawPairs(rt, "cookie"),
		}
		if rapid.Bool().Draw(rt, "hasBody") {
			req.Body = &request.Body{
				ContentType: "application/json",
				Data:        []byte(rapid.StringMatching(`[a-z{}":,0-9]{1,40}`).Draw(rt, "body")),
				Params:      drawPairs(rt, "param"),
			}
		}
		require.Equal(rt, req, ToRequest(FromRequest(req)))
	})
}
