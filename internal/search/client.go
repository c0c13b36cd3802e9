// Package search wraps the Elasticsearch client used by request handlers.
//
// NewClient builds the shared, concurrency-safe *elasticsearch.Client. The
// helpers in this package perform one request each, always close the response
// body, and turn every transport failure or error response into an
// *apperr.Error of kind Elastic (or NotFound for missing documents).
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-backend-kit/internal/apperr"
	"github.com/tbourn/go-backend-kit/internal/config"
	"github.com/tbourn/go-backend-kit/internal/observability"
)

// maxErrorBody caps how much of an error response is kept in the message.
const maxErrorBody = 512

// NewClient builds a client for cfg. API key auth wins over basic auth.
func NewClient(cfg config.ElasticConfig) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, apperr.ElasticCause(err.Error(), err)
	}
	return es, nil
}

// Ping checks that the cluster answers.
func Ping(ctx context.Context, es *elasticsearch.Client) (err error) {
	ctx, span := startSpan(ctx, "ping", "")
	defer func() { endSpan(span, err) }()

	res, err := es.Ping(es.Ping.WithContext(ctx))
	return check(res, err, "ping")
}

// IndexDocument stores doc under id, replacing any previous version.
func IndexDocument(ctx context.Context, es *elasticsearch.Client, index, id string, doc any) (err error) {
	ctx, span := startSpan(ctx, "index", index)
	defer func() { endSpan(span, err) }()

	body, err := json.Marshal(doc)
	if err != nil {
		return apperr.SystemCause(err.Error(), err)
	}
	res, err := es.Index(index, bytes.NewReader(body),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(id),
	)
	return check(res, err, "index")
}

// GetDocument fetches the _source of id into a new T.
func GetDocument[T any](ctx context.Context, es *elasticsearch.Client, index, id string) (_ *T, err error) {
	ctx, span := startSpan(ctx, "get", index)
	defer func() { endSpan(span, err) }()

	res, err := es.Get(index, id, es.Get.WithContext(ctx))
	if err := checkFound(res, err, "get"); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, apperr.ElasticCause("get: decode response: "+err.Error(), err)
	}
	var v T
	if err := json.Unmarshal(envelope.Source, &v); err != nil {
		return nil, apperr.ElasticCause("get: decode source: "+err.Error(), err)
	}
	return &v, nil
}

// DeleteDocument removes id from index.
func DeleteDocument(ctx context.Context, es *elasticsearch.Client, index, id string) (err error) {
	ctx, span := startSpan(ctx, "delete", index)
	defer func() { endSpan(span, err) }()

	res, err := es.Delete(index, id, es.Delete.WithContext(ctx))
	if err := checkFound(res, err, "delete"); err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

// SearchDocuments runs query (a value marshalled as the request body, e.g.
// map[string]any{"query": ...}) and decodes every hit's _source into T.
// No hits yields an empty, non-nil slice.
func SearchDocuments[T any](ctx context.Context, es *elasticsearch.Client, index string, query any) (_ []T, err error) {
	ctx, span := startSpan(ctx, "search", index)
	defer func() { endSpan(span, err) }()

	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperr.SystemCause(err.Error(), err)
	}
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperr.ElasticCause("search: "+err.Error(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, "search")
	}

	var envelope struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, apperr.ElasticCause("search: decode response: "+err.Error(), err)
	}
	out := make([]T, 0, len(envelope.Hits.Hits))
	for _, h := range envelope.Hits.Hits {
		var v T
		if err := json.Unmarshal(h.Source, &v); err != nil {
			return nil, apperr.ElasticCause("search: decode hit: "+err.Error(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// startSpan opens a client span named "elasticsearch <op>".
func startSpan(ctx context.Context, op, index string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "elasticsearch"),
		attribute.String("db.operation", op),
	}
	if index != "" {
		attrs = append(attrs, attribute.String("db.elasticsearch.index", index))
	}
	return observability.Tracer().Start(ctx, "elasticsearch "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// endSpan records err (NotFound excluded) and ends span.
func endSpan(span trace.Span, err error) {
	if ae, ok := apperr.As(err); ok && ae.Kind() != apperr.KindNotFound {
		span.RecordError(err)
		span.SetStatus(codes.Error, ae.Message())
	}
	span.End()
}

// check closes res and converts transport or status failures.
func check(res *esapi.Response, err error, op string) error {
	if err != nil {
		return apperr.ElasticCause(op+": "+err.Error(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res, op)
	}
	return nil
}

// checkFound is check for single-document calls: a 404 becomes NotFound and
// the body is left open on success for the caller to consume.
func checkFound(res *esapi.Response, err error, op string) error {
	if err != nil {
		return apperr.ElasticCause(op+": "+err.Error(), err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return apperr.NotFound("document not found")
	}
	if res.IsError() {
		defer res.Body.Close()
		return responseError(res, op)
	}
	return nil
}

func responseError(res *esapi.Response, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	msg := fmt.Sprintf("%s: [%d] %s", op, res.StatusCode, strings.TrimSpace(string(raw)))
	return apperr.Elastic(msg)
}
