package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RequestOptions describes a single call through the pipeline.
type RequestOptions struct {
	Method  string // default GET
	Headers map[string]string
	Body    []byte
	Query   url.Values

	// SkipAuth suppresses the Authorization header.
	SkipAuth bool
	// SkipRefresh disables the refresh-and-replay path on 401. Replays set it.
	SkipRefresh bool
}

func (o RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}

// Post returns options for a POST with v encoded as the JSON body.
func Post(v any) (RequestOptions, error) {
	return withJSON(http.MethodPost, v)
}

// Patch returns options for a PATCH with v encoded as the JSON body.
func Patch(v any) (RequestOptions, error) {
	return withJSON(http.MethodPatch, v)
}

func withJSON(method string, v any) (RequestOptions, error) {
	opts := RequestOptions{Method: method}
	if v == nil {
		return opts, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return opts, fmt.Errorf("encode request body: %w", err)
	}
	opts.Body = b
	return opts, nil
}

// Response is a parsed JSON body plus its status code.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Decode unmarshals the body into v; failures are reported as *ParseError.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ParseError{Status: r.Status, Err: err}
	}
	return nil
}
