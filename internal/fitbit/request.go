package fitbit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request is one logical API call. Name identifies the call in logs and metrics.
type Request struct {
	Name   string
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	// Form is sent as an application/x-www-form-urlencoded body.
	Form url.Values
	// NoAuth omits the bearer token.
	NoAuth bool
}

// Get returns a GET request.
func Get(name, rawURL string) Request {
	return Request{Name: name, Method: http.MethodGet, URL: rawURL}
}

// BuildURL parses URL and merges Query into any query string it already has.
func (r Request) BuildURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if len(r.Query) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range r.Query {
		q[k] = append([]string(nil), vs...)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FullURL is BuildURL for logs and errors; an unparsable URL is returned as is.
func (r Request) FullURL() string {
	full, err := r.BuildURL()
	if err != nil {
		return r.URL
	}
	return full
}

// Payload is a successful response.
type Payload struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the body into v.
func (p *Payload) DecodeJSON(v any) error {
	if err := json.Unmarshal(p.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
