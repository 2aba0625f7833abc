package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/opsworks-ru/go-es-facade/internal/logger"
)

// DefaultSize bounds query results when the caller gives no explicit size.
const DefaultSize = 10000

// Config carries the connection parameters for one cluster endpoint.
// Index names the default index used by Setup, Get and Put.
type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

// ES is a facade over the go-elasticsearch client, scoped to one configured
// cluster endpoint. The underlying client is created lazily on first use and
// reused for the lifetime of the facade.
type ES struct {
	cfg Config
	es  *elasticsearch.Client
}

func New(cfg Config) *ES {
	return &ES{cfg: cfg}
}

// Log returns the process-wide logger.
func (e *ES) Log() *zap.Logger { return logger.L() }

// Client returns the Elasticsearch client handle, creating it on first call.
func (e *ES) Client() (*elasticsearch.Client, error) {
	if e.es != nil {
		return e.es, nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{e.cfg.URL},
		Username:  e.cfg.Username,
		Password:  e.cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	e.es = client
	return e.es, nil
}

// Indices returns the index-administration handle derived from Client.
func (e *ES) Indices() (*esapi.Indices, error) {
	client, err := e.Client()
	if err != nil {
		return nil, err
	}
	return client.Indices, nil
}

// Ping reports whether the cluster answers a liveness probe. Any failure is
// treated as "not alive", never as an error.
func (e *ES) Ping(ctx context.Context) bool {
	client, err := e.Client()
	if err != nil {
		return false
	}
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// CheckIndex reports whether the named index exists. A missing index is
// false, not an error; connectivity failures are errors.
func (e *ES) CheckIndex(ctx context.Context, name string) (bool, error) {
	indices, err := e.Indices()
	if err != nil {
		return false, err
	}
	res, err := indices.Exists([]string{name}, indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %q: %w", name, err)
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK, nil
}

// CreateIndex creates an index with the given settings and mappings. The
// cluster's error, including resource_already_exists, is propagated as-is.
func (e *ES) CreateIndex(ctx context.Context, name string, settings, mappings map[string]any) error {
	indices, err := e.Indices()
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"settings": settings,
		"mappings": mappings,
	})
	if err != nil {
		return fmt.Errorf("encode index body: %w", err)
	}
	res, err := indices.Create(name,
		indices.Create.WithBody(bytes.NewReader(body)),
		indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index "+name, res)
	}
	return nil
}

// EmptyIndex removes every document from the named index, leaving its
// settings and mappings untouched. The index must exist.
func (e *ES) EmptyIndex(ctx context.Context, name string) error {
	exists, err := e.CheckIndex(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("empty index %q: index does not exist", name)
	}
	client, err := e.Client()
	if err != nil {
		return err
	}
	res, err := client.DeleteByQuery(
		[]string{name},
		strings.NewReader(`{"query":{"match_all":{}}}`),
		client.DeleteByQuery.WithContext(ctx),
		client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("empty index %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("empty index "+name, res)
	}
	return nil
}

// DeleteIndex removes an index. Deleting a missing index is an error.
func (e *ES) DeleteIndex(ctx context.Context, name string) error {
	indices, err := e.Indices()
	if err != nil {
		return err
	}
	res, err := indices.Delete([]string{name}, indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("delete index "+name, res)
	}
	return nil
}

// Search runs the query against the index and returns the cluster's full
// response structure, bounded to size hits.
func (e *ES) Search(ctx context.Context, index string, query map[string]any, size int) (*SearchResponse, error) {
	client, err := e.Client()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(index),
		client.Search.WithBody(bytes.NewReader(body)),
		client.Search.WithSize(size),
	)
	if err != nil {
		return nil, fmt.Errorf("search index %q: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search index "+index, res)
	}
	var out SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

// Query is the extracted variant of Search: it returns only the hit list.
func (e *ES) Query(ctx context.Context, index string, query map[string]any, size int) ([]Hit, error) {
	resp, err := e.Search(ctx, index, query, size)
	if err != nil {
		return nil, err
	}
	return resp.Hits.Hits, nil
}

// Store indexes a single document into the named index and returns the
// cluster's write acknowledgment.
func (e *ES) Store(ctx context.Context, index string, body map[string]any) (*IndexAck, error) {
	client, err := e.Client()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	res, err := client.Index(index, bytes.NewReader(payload), client.Index.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("store into index %q: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("store into index "+index, res)
	}
	var ack IndexAck
	if err := json.NewDecoder(res.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode index response: %w", err)
	}
	return &ack, nil
}

// Layout of the default index.
var (
	defaultSettings = map[string]any{
		"number_of_shards":   2,
		"number_of_replicas": 2,
	}
	defaultMappings = map[string]any{
		"properties": map[string]any{
			"id": map[string]any{"type": "long"},
			"timestamp": map[string]any{
				"type":   "date",
				"format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis",
			},
		},
	}
)

// Setup makes sure the default index exists, creating it when missing.
// Call once per facade lifetime before Get or Put.
func (e *ES) Setup(ctx context.Context) error {
	if e.cfg.Index == "" {
		return fmt.Errorf("setup: no default index configured")
	}
	exists, err := e.CheckIndex(ctx, e.cfg.Index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return e.CreateIndex(ctx, e.cfg.Index, defaultSettings, defaultMappings)
}

// Get queries the default index. A nil query matches all documents.
func (e *ES) Get(ctx context.Context, query map[string]any) ([]Hit, error) {
	if query == nil {
		query = map[string]any{"match_all": map[string]any{}}
	}
	return e.Query(ctx, e.cfg.Index, query, DefaultSize)
}

// Put stamps the document with the current time and stores it in the
// default index. A nil body stores just the timestamp.
func (e *ES) Put(ctx context.Context, body map[string]any) (*IndexAck, error) {
	if body == nil {
		body = map[string]any{}
	}
	body["timestamp"] = ToTimestamp(time.Now())
	return e.Store(ctx, e.cfg.Index, body)
}

func responseError(op string, res *esapi.Response) error {
	raw, err := io.ReadAll(res.Body)
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%s: %s", op, res.Status())
	}
	return fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(raw))
}
