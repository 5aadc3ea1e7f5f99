package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nidhogg/mnemo/internal/clock"
	"github.com/nidhogg/mnemo/internal/embedding"
	"github.com/nidhogg/mnemo/internal/memory"
	"github.com/nidhogg/mnemo/internal/retrieval"
	"go.uber.org/zap"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestHandler creates a Handler wired with lightweight in-memory deps
// (no Postgres/Qdrant/Neo4j).
func newTestHandler(t *testing.T) (*Handler, http.Handler, *clock.Manual) {
	t.Helper()
	logger := zap.NewNop()

	clk := clock.NewManual(testBase)
	scoring := memory.DefaultScoreConfig()
	embedder := embedding.NewCorpusProvider(64)
	registry := memory.NewInMemRegistry(scoring, clk.Now)
	engine := retrieval.New(embedder, clk, scoring, retrieval.DefaultOptions(), logger)

	h := NewHandler(registry, engine, embedder, nil, clk, logger)
	return h, h.Router(), clk
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// addMemory posts a memory with a timestamp relative to the test base.
func addMemory(t *testing.T, ts *httptest.Server, agentID, text string, importance float64, source string, age time.Duration) {
	t.Helper()
	resp := postJSON(t, ts, "/api/agents/"+agentID+"/memories", map[string]interface{}{
		"text":       text,
		"importance": importance,
		"source":     source,
		"timestamp":  testBase.Add(-age),
	})
	if resp.StatusCode != 201 {
		t.Fatalf("add memory: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["service"] != "mnemo" {
		t.Errorf("expected service mnemo, got %q", body["service"])
	}
}

func TestWorldStatus(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/world/status")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	if body["world_time"] != testBase.Format(time.RFC3339) {
		t.Errorf("expected world_time %s, got %v", testBase.Format(time.RFC3339), body["world_time"])
	}
}

func TestAddAndListMemories(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "isabella", "saw a fox in the garden", 4, "observation", time.Hour)
	addMemory(t, ts, "isabella", "talked with klaus about the party", 6, "conversation", 2*time.Hour)

	// List all
	resp := getJSON(t, ts, "/api/agents/isabella/memories")
	if resp.StatusCode != 200 {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var body recordsResponse
	decodeJSON(t, resp, &body)
	if body.Count != 2 {
		t.Fatalf("expected 2 memories, got %d", body.Count)
	}

	// Filter by source
	resp = getJSON(t, ts, "/api/agents/isabella/memories?source=conversation")
	decodeJSON(t, resp, &body)
	if body.Count != 1 {
		t.Fatalf("expected 1 conversation, got %d", body.Count)
	}
	if body.Memories[0].Source != memory.SourceConversation {
		t.Errorf("expected conversation source, got %q", body.Memories[0].Source)
	}

	// Unknown source — 400
	resp = getJSON(t, ts, "/api/agents/isabella/memories?source=dreams")
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for unknown source, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Agent shows up in the roster
	resp = getJSON(t, ts, "/api/agents")
	var ids []string
	decodeJSON(t, resp, &ids)
	if len(ids) != 1 || ids[0] != "isabella" {
		t.Errorf("expected [isabella], got %v", ids)
	}
}

func TestAddMemoryValidation(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	// Missing text
	resp := postJSON(t, ts, "/api/agents/a/memories", map[string]interface{}{"importance": 5})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for missing text, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown source
	resp = postJSON(t, ts, "/api/agents/a/memories", map[string]interface{}{
		"text": "hello", "source": "rumor",
	})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for unknown source, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Empty source defaults to observation
	resp = postJSON(t, ts, "/api/agents/a/memories", map[string]interface{}{
		"text": "hello", "importance": 3,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var rec memory.Record
	decodeJSON(t, resp, &rec)
	if rec.Source != memory.SourceObservation {
		t.Errorf("expected default source observation, got %q", rec.Source)
	}
	if !rec.Timestamp.Equal(testBase) {
		t.Errorf("expected default timestamp from clock, got %v", rec.Timestamp)
	}
}

func TestRetrieve(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "klaus", "studying gentrification at the library", 7, "observation", time.Hour)
	addMemory(t, ts, "klaus", "ate breakfast at the cafe", 2, "observation", 2*time.Hour)
	addMemory(t, ts, "klaus", "reading papers on urban gentrification", 6, "observation", 3*time.Hour)

	resp := postJSON(t, ts, "/api/agents/klaus/retrieve", map[string]interface{}{
		"query": "gentrification research", "k": 2,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body recordsResponse
	decodeJSON(t, resp, &body)
	if body.Count != 2 {
		t.Fatalf("expected 2 results with k=2, got %d", body.Count)
	}
	for _, rec := range body.Memories {
		if rec.Text == "ate breakfast at the cafe" {
			t.Errorf("breakfast memory should rank below both gentrification memories")
		}
	}
}

func TestRetrieveValidation(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	cases := []map[string]interface{}{
		{"query": "x", "k": 0},
		{"query": "x", "k": 5, "min_importance": 11},
		{"query": "x", "k": 5, "window_hours": -1},
		{"query": "x", "k": 5, "sources": []string{"rumor"}},
	}
	for i, req := range cases {
		resp := postJSON(t, ts, "/api/agents/a/retrieve", req)
		if resp.StatusCode != 400 {
			t.Errorf("case %d: expected 400, got %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestRetrieveWithSummary(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "maria", "finished the mural at the park", 8, "observation", time.Hour)

	resp := postJSON(t, ts, "/api/agents/maria/retrieve", map[string]interface{}{
		"query": "mural", "k": 5, "summarize": true,
	})
	var body recordsResponse
	decodeJSON(t, resp, &body)
	if body.Summary != "- finished the mural at the park" {
		t.Errorf("unexpected summary %q", body.Summary)
	}
}

func TestRetrievePlanning(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "klaus", "drafted the essay outline", 8, "goal_activity", time.Hour)
	addMemory(t, ts, "klaus", "I work best in the mornings", 7, "reflection", 5*time.Hour)
	addMemory(t, ts, "klaus", "library closes at six", 5, "observation", 2*time.Hour)

	resp := postJSON(t, ts, "/api/agents/klaus/retrieve/planning", map[string]interface{}{
		"context": "plan tomorrow", "goals": []string{"finish essay"},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body recordsResponse
	decodeJSON(t, resp, &body)
	if body.Count == 0 {
		t.Fatal("expected planning results")
	}
	seen := map[string]bool{}
	for _, rec := range body.Memories {
		seen[rec.Text] = true
	}
	if !seen["drafted the essay outline"] || !seen["I work best in the mornings"] {
		t.Errorf("planning agenda missing goal activity or reflection: %v", seen)
	}
}

func TestRetrieveReflection(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "sam", "argued with the landlord", 7, "observation", 3*time.Hour)
	addMemory(t, ts, "sam", "old grievance from last week", 9, "observation", 25*time.Hour)
	addMemory(t, ts, "sam", "watered the plants", 2, "observation", time.Hour)

	resp := postJSON(t, ts, "/api/agents/sam/retrieve/reflection", map[string]interface{}{})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body recordsResponse
	decodeJSON(t, resp, &body)
	if body.Count != 1 {
		t.Fatalf("expected 1 reflection candidate, got %d", body.Count)
	}
	if body.Memories[0].Text != "argued with the landlord" {
		t.Errorf("unexpected candidate %q", body.Memories[0].Text)
	}

	// Negative period — 400
	resp = postJSON(t, ts, "/api/agents/sam/retrieve/reflection", map[string]interface{}{
		"period_hours": -1,
	})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for negative period, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRetrieveSocial(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "isabella", "Marcus helped me carry the boxes", 5, "observation", 2*time.Hour)
	addMemory(t, ts, "isabella", "bought flowers at the market", 4, "observation", time.Hour)

	resp := postJSON(t, ts, "/api/agents/isabella/retrieve/social", map[string]interface{}{
		"other_agent": "marcus", "context": "planning a favor",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body recordsResponse
	decodeJSON(t, resp, &body)
	found := false
	for _, rec := range body.Memories {
		if rec.Text == "Marcus helped me carry the boxes" {
			found = true
		}
	}
	if !found {
		t.Error("expected the Marcus memory in social results")
	}

	// Missing other_agent — 400
	resp = postJSON(t, ts, "/api/agents/isabella/retrieve/social", map[string]interface{}{})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for missing other_agent, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRetrieveSimilarAndKnowledge(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	addMemory(t, ts, "sam", "negotiating rent never goes well", 6, "learning", 30*time.Hour)
	addMemory(t, ts, "sam", "the landlord raised the rent", 5, "observation", 2*time.Hour)

	resp := postJSON(t, ts, "/api/agents/sam/retrieve/similar", map[string]interface{}{
		"situation": "negotiating the rent", "k": 3,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("similar: expected 200, got %d", resp.StatusCode)
	}
	var body recordsResponse
	decodeJSON(t, resp, &body)
	if body.Count == 0 {
		t.Error("expected similar-experience results")
	}

	resp = postJSON(t, ts, "/api/agents/sam/retrieve/knowledge", map[string]interface{}{
		"topic": "rent",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("knowledge: expected 200, got %d", resp.StatusCode)
	}
	decodeJSON(t, resp, &body)
	for _, rec := range body.Memories {
		if rec.Source == memory.SourceConversation || rec.Source == memory.SourcePlan {
			t.Errorf("knowledge retrieval returned non-knowledge source %q", rec.Source)
		}
	}
}

func TestSummarizeEndpoint(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	// Empty list — sentinel
	resp := postJSON(t, ts, "/api/summarize", map[string]interface{}{
		"memories": []interface{}{},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["summary"] != retrieval.EmptySummary {
		t.Errorf("expected sentinel summary, got %q", body["summary"])
	}

	resp = postJSON(t, ts, "/api/summarize", map[string]interface{}{
		"memories": []map[string]interface{}{
			{"text": "low", "importance": 2, "timestamp": testBase},
			{"text": "high", "importance": 9, "timestamp": testBase},
		},
		"max_length": 100,
	})
	decodeJSON(t, resp, &body)
	if body["summary"] != "- high\n- low" {
		t.Errorf("expected salience-ordered summary, got %q", body["summary"])
	}
}

func TestRelationsUnavailable(t *testing.T) {
	_, router, _ := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/agents/a/relations")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a relation graph, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
