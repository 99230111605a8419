package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/w-h-a/companion/decay"
	"github.com/w-h-a/companion/embedder/mock"
	memoryindex "github.com/w-h-a/companion/index/memory"
	"github.com/w-h-a/companion/internal/service/memories"
	"github.com/w-h-a/companion/memory"
	"github.com/w-h-a/companion/retriever"
	httpserver "github.com/w-h-a/companion/server/http"
	memorystore "github.com/w-h-a/companion/store/memory"
)

func newTestServer() *httptest.Server {
	st := memorystore.NewStore()
	idx := memoryindex.NewIndex()
	emb := mock.NewEmbedder(64)

	engine := retriever.NewEngine(
		retriever.WithStore(st),
		retriever.WithIndex(idx),
		retriever.WithEmbedder(emb),
	)

	janitor := decay.NewManager(
		decay.WithStore(st),
		decay.WithIndex(idx),
		decay.WithEmbedder(emb),
	)

	service := memories.New(
		memories.WithStore(st),
		memories.WithIndex(idx),
		memories.WithEmbedder(emb),
		memories.WithEngine(engine),
		memories.WithJanitor(janitor),
		memories.WithSyncIndexing(),
	)

	server := httpserver.NewServer(service)

	return httptest.NewServer(server.Router())
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	rsp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	return rsp
}

func decode[T any](t *testing.T, rsp *http.Response) T {
	t.Helper()
	defer rsp.Body.Close()

	var out T
	if err := json.NewDecoder(rsp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	return out
}

func TestCreateAndListMemories(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp := post(t, ts.URL+"/players/player-1/memories", map[string]any{
		"type":    "achievement",
		"content": "defeated the dragon",
		"emotion": "excited",
		"context": map[string]any{"rarity": "legendary"},
	})
	if rsp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rsp.StatusCode)
	}

	created := decode[memory.Memory](t, rsp)
	if created.ID == "" {
		t.Error("expected a generated id in the response")
	}
	if created.Importance != 1.0 {
		t.Errorf("expected a maxed-out score, got %v", created.Importance)
	}

	rsp, err := http.Get(ts.URL + "/players/player-1/memories")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rsp.StatusCode)
	}

	listed := decode[struct {
		Memories []memory.Memory `json:"memories"`
	}](t, rsp)
	if len(listed.Memories) != 1 || listed.Memories[0].ID != created.ID {
		t.Errorf("expected the created memory in the list")
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp := post(t, ts.URL+"/players/player-1/memories", map[string]any{
		"type":    "daydream",
		"content": "something",
	})
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rsp.StatusCode)
	}
}

func TestContextReturnsABareArray(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp := post(t, ts.URL+"/players/player-1/memories", map[string]any{
		"type":    "dramatic",
		"content": "clutch victory in overtime",
		"emotion": "amazed",
	})
	rsp.Body.Close()
	if rsp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rsp.StatusCode)
	}

	rsp = post(t, ts.URL+"/players/player-1/context", map[string]any{
		"currentEvent": "clutch victory in overtime",
		"limit":        5,
	})
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rsp.StatusCode)
	}
	if rsp.Header.Get("X-Memory-Degraded") != "" {
		t.Error("expected a healthy blend")
	}

	// the dialogue client decodes the body as a plain array, not an envelope
	memories := decode[[]memory.Memory](t, rsp)
	if len(memories) != 1 {
		t.Errorf("expected 1 memory, got %d", len(memories))
	}
}

func TestContextWithNoMemoriesIsEmptyNotNull(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp := post(t, ts.URL+"/players/player-1/context", map[string]any{
		"currentEvent": "anything",
	})
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rsp.StatusCode)
	}
	defer rsp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(rsp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(raw) == "null" {
		t.Error("expected [] rather than null")
	}
}

func TestSearchMemories(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp := post(t, ts.URL+"/players/player-1/memories", map[string]any{
		"type":    "event",
		"content": "went fishing at dawn",
	})
	rsp.Body.Close()

	rsp = post(t, ts.URL+"/players/player-1/memories/search", map[string]any{
		"query": "went fishing at dawn",
		"limit": 5,
	})
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rsp.StatusCode)
	}

	results := decode[struct {
		Memories []retriever.Result `json:"memories"`
		Degraded bool               `json:"degraded"`
	}](t, rsp)
	if results.Degraded {
		t.Error("expected a healthy search")
	}
	if len(results.Memories) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results.Memories))
	}
	if results.Memories[0].SimilarityScore <= 0 {
		t.Error("expected a positive similarity score for an exact match")
	}
}

func TestUpdateImportanceNotFound(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	buf, _ := json.Marshal(map[string]any{"importance": 0.9})

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/memories/no-such-id/importance", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rsp.StatusCode)
	}
}

func TestCleanupReportsDeletedCount(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp := post(t, ts.URL+"/players/player-1/memories", map[string]any{
		"type":    "observation",
		"content": "noticed the weather",
	})
	created := decode[memory.Memory](t, rsp)

	buf, _ := json.Marshal(map[string]any{"importance": 0.1})

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/memories/%s/importance", ts.URL, created.ID), bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	rsp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rsp.StatusCode)
	}

	rsp = post(t, ts.URL+"/players/player-1/memories/cleanup", map[string]any{
		"minImportance": 0.3,
	})
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rsp.StatusCode)
	}

	result := decode[struct {
		DeletedCount int `json:"deletedCount"`
	}](t, rsp)
	if result.DeletedCount != 1 {
		t.Errorf("expected 1 deletion, got %d", result.DeletedCount)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	rsp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", rsp.StatusCode)
	}
}
