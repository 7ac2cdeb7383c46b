package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

//go:embed data/products.json
var embeddedProducts []byte

// Source loads the raw product list.
type Source interface {
	Fetch(ctx context.Context) ([]Product, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Product, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]Product, error) { return f(ctx) }

// EmbeddedSource serves the catalog bundled with the binary.
type EmbeddedSource struct{}

// Fetch decodes the bundled catalog.
func (EmbeddedSource) Fetch(context.Context) ([]Product, error) {
	return decode(bytes.NewReader(embeddedProducts))
}

// FileSource reads the catalog from a JSON file.
type FileSource struct {
	Path string
}

// Fetch reads and decodes Path.
func (s FileSource) Fetch(context.Context) ([]Product, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

// HTTPSource fetches the catalog from a fixed URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch performs a GET on URL. Non-2xx responses are errors.
func (s HTTPSource) Fetch(ctx context.Context) ([]Product, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", s.URL, resp.Status)
	}
	return decode(resp.Body)
}

func decode(r io.Reader) ([]Product, error) {
	var products []Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}
