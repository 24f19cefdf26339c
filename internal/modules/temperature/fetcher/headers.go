package fetcher

import (
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed headers.yaml
var defaultHeadersYAML []byte

// Headers is the opaque request header bundle applied to every fetch.
type Headers map[string]string

type headerBundle struct {
	Headers Headers `yaml:"headers"`
}

// LoadHeaders reads the bundle at path, or the embedded default when path is empty.
func LoadHeaders(path string) (Headers, error) {
	data := defaultHeadersYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read headers file: %w", err)
		}
		data = b
	}
	return parseHeaders(data)
}

// DefaultHeaders returns the embedded bundle.
func DefaultHeaders() Headers {
	h, err := parseHeaders(defaultHeadersYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded headers.yaml: %v", err))
	}
	return h
}

func parseHeaders(data []byte) (Headers, error) {
	var b headerBundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse headers: %w", err)
	}
	if len(b.Headers) == 0 {
		return nil, fmt.Errorf("parse headers: no headers defined")
	}
	for k := range b.Headers {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("parse headers: empty header name")
		}
	}
	return b.Headers, nil
}

// apply sets every header on req. Host cannot be set through req.Header, so
// it goes to req.Host.
func (h Headers) apply(req *http.Request) {
	for k, v := range h {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
}
