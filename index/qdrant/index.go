package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/w-h-a/companion/index"
	getsafe "github.com/w-h-a/companion/util/get_safe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type qdrantIndex struct {
	options index.Options
	client  *http.Client
}

func (q *qdrantIndex) Upsert(ctx context.Context, id string, vector []float32, payload index.Payload) error {
	point := map[string]any{
		"id":     id,
		"vector": vector,
		"payload": map[string]any{
			"owner_id":   payload.OwnerID,
			"type":       string(payload.Type),
			"importance": payload.Importance,
			"created_at": payload.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	req := map[string]any{
		"points": []map[string]any{point},
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(q.options.Collection))

	if err := q.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (q *qdrantIndex) Search(ctx context.Context, ownerId string, vector []float32, limit int, minImportance float64) ([]index.Hit, error) {
	if limit < 1 {
		return nil, nil
	}

	must := []map[string]any{
		{
			"key":   "owner_id",
			"match": map[string]any{"value": ownerId},
		},
	}

	if minImportance > 0 {
		must = append(must, map[string]any{
			"key":   "importance",
			"range": map[string]any{"gte": minImportance},
		})
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": must,
		},
	}

	var rsp qdrantEnvelope[[]qdrantPointResult]

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(q.options.Collection))

	if err := q.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, err
	}

	hits := make([]index.Hit, 0, len(rsp.Result))

	for _, point := range rsp.Result {
		payload := point.Payload

		createdAt, _ := time.Parse(time.RFC3339Nano, getsafe.String(payload, "created_at"))

		hit := index.Hit{
			ID:    point.Id,
			Score: point.Score,
			Payload: index.Payload{
				OwnerID:    getsafe.String(payload, "owner_id"),
				Type:       getsafe.Type(payload, "type"),
				Importance: getsafe.Float(payload, "importance"),
				CreatedAt:  createdAt,
			},
		}

		hits = append(hits, hit)
	}

	return hits, nil
}

func (q *qdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	req := map[string]any{
		"points": ids,
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(q.options.Collection))

	if err := q.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (q *qdrantIndex) do(ctx context.Context, method string, path string, req any, rsp any) error {
	u := q.options.Location + path
	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if len(q.options.ApiKey) > 0 {
		request.Header.Set("api-key", q.options.ApiKey)
		request.Header.Set("Authorization", "Bearer "+q.options.ApiKey)
	}

	response, err := q.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

func (q *qdrantIndex) configure() error {
	exists, err := q.collectionExists()
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return q.createCollection()
}

func (q *qdrantIndex) collectionExists() (bool, error) {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(q.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	err := q.do(context.Background(), http.MethodGet, path, nil, &rsp)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, err
	}

	return strings.EqualFold(rsp.Status.State, "ok"), nil
}

func (q *qdrantIndex) createCollection() error {
	distance := q.options.Distance
	if len(distance) == 0 {
		distance = "Cosine"
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     q.options.VectorSize,
			"distance": distance,
		},
	}

	path := fmt.Sprintf("/collections/%s", url.PathEscape(q.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := q.do(context.Background(), http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func NewIndex(opts ...index.Option) index.Index {
	options := index.NewOptions(opts...)

	if len(options.Location) == 0 ||
		len(options.Collection) == 0 ||
		options.VectorSize == 0 {
		panic("missing location, collection, or vector size for qdrant index")
	}

	client := options.Client
	if client == nil {
		client = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	q := &qdrantIndex{
		options: options,
		client:  client,
	}

	if err := q.configure(); err != nil {
		panic(err)
	}

	return q
}
