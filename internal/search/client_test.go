package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/go-backend-kit/internal/apperr"
	"github.com/tbourn/go-backend-kit/internal/config"
)

type article struct {
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// fakeCluster is a tiny in-memory stand-in for the document and search APIs.
type fakeCluster struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage // "index/id" -> source
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case len(parts) == 3 && parts[1] == "_doc":
		key := parts[0] + "/" + parts[2]
		switch r.Method {
		case http.MethodPut, http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			f.docs[key] = body
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"result":"created"}`)
		case http.MethodGet:
			src, ok := f.docs[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"found":false}`)
				return
			}
			_, _ = w.Write([]byte(`{"found":true,"_source":` + string(src) + `}`))
		case http.MethodDelete:
			if _, ok := f.docs[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"result":"not_found"}`)
				return
			}
			delete(f.docs, key)
			_, _ = io.WriteString(w, `{"result":"deleted"}`)
		}
	case len(parts) == 2 && parts[1] == "_search":
		if parts[0] == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"type":"search_phase_execution_exception"}}`)
			return
		}
		var hits []string
		for k, src := range f.docs {
			if strings.HasPrefix(k, parts[0]+"/") {
				hits = append(hits, `{"_source":`+string(src)+`}`)
			}
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[`+strings.Join(hits, ",")+`]}}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"unexpected request"}`)
	}
}

func newTestClient(t *testing.T) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(&fakeCluster{docs: map[string]json.RawMessage{}})
	t.Cleanup(srv.Close)

	es, err := NewClient(config.ElasticConfig{Addresses: []string{srv.URL}, Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return es
}

func requireKind(t *testing.T, err error, want apperr.Kind) *apperr.Error {
	t.Helper()
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T: %v", err, err)
	}
	if ae.Kind() != want {
		t.Fatalf("kind = %v; want %v (%v)", ae.Kind(), want, ae)
	}
	return ae
}

func TestNewClient_InvalidAddress(t *testing.T) {
	_, err := NewClient(config.ElasticConfig{Addresses: []string{"://bad"}})
	requireKind(t, err, apperr.KindElastic)
}

func TestPing(t *testing.T) {
	es := newTestClient(t)
	if err := Ping(context.Background(), es); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	es, err := NewClient(config.ElasticConfig{Addresses: []string{addr}, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ae := requireKind(t, Ping(context.Background(), es), apperr.KindElastic)
	if ae.UserErrors()["elastic"][0] != apperr.MsgServerError {
		t.Fatalf("user view must be redacted")
	}
	if !strings.HasPrefix(ae.Message(), "ping: ") {
		t.Fatalf("system message should name the operation, got %q", ae.Message())
	}
}

func TestDocumentLifecycle(t *testing.T) {
	es := newTestClient(t)
	ctx := context.Background()

	doc := article{Title: "hello", CreatedAt: "2024-01-02T03:04:05"}
	if err := IndexDocument(ctx, es, "articles", "1", doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	got, err := GetDocument[article](ctx, es, "articles", "1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if *got != doc {
		t.Fatalf("GetDocument = %+v; want %+v", *got, doc)
	}

	hits, err := SearchDocuments[article](ctx, es, "articles", map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
	})
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "hello" {
		t.Fatalf("hits = %+v", hits)
	}

	if err := DeleteDocument(ctx, es, "articles", "1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	_, err = GetDocument[article](ctx, es, "articles", "1")
	ae := requireKind(t, err, apperr.KindNotFound)
	if ae.StatusCode() != http.StatusNotFound {
		t.Fatalf("status = %d", ae.StatusCode())
	}
	requireKind(t, DeleteDocument(ctx, es, "articles", "1"), apperr.KindNotFound)
}

func TestSearchDocuments_EmptyAndErrors(t *testing.T) {
	es := newTestClient(t)
	ctx := context.Background()

	none, err := SearchDocuments[article](ctx, es, "empty", map[string]any{})
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v err=%v", none, err)
	}

	_, err = SearchDocuments[article](ctx, es, "broken", map[string]any{})
	ae := requireKind(t, err, apperr.KindElastic)
	if !strings.Contains(ae.Message(), "[500]") || !strings.Contains(ae.Message(), "search_phase_execution_exception") {
		t.Fatalf("message should carry status and body, got %q", ae.Message())
	}
	if ae.StatusCode() != http.StatusInternalServerError {
		t.Fatalf("status = %d", ae.StatusCode())
	}

	_, err = SearchDocuments[article](ctx, es, "x", map[string]any{"bad": func() {}})
	requireKind(t, err, apperr.KindSystem)
}

func TestHelpers_RecordSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	es := newTestClient(t)
	ctx := context.Background()
	_, _ = GetDocument[article](ctx, es, "articles", "missing")
	_, _ = SearchDocuments[article](ctx, es, "broken", map[string]any{})

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("spans = %d; want 2", len(ended))
	}
	if ended[0].Name() != "elasticsearch get" || ended[0].Status().Code == codes.Error {
		t.Fatalf("a missing document is not a span error: %s %v", ended[0].Name(), ended[0].Status())
	}
	if ended[1].Name() != "elasticsearch search" || ended[1].Status().Code != codes.Error {
		t.Fatalf("failed search should mark the span: %s %v", ended[1].Name(), ended[1].Status())
	}
}
