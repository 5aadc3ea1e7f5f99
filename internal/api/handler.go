package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/mnemo/internal/clock"
	"github.com/nidhogg/mnemo/internal/embedding"
	"github.com/nidhogg/mnemo/internal/memory"
	"github.com/nidhogg/mnemo/internal/relation"
	"github.com/nidhogg/mnemo/internal/retrieval"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	registry  memory.Registry
	engine    *retrieval.Engine
	embedder  embedding.Provider
	relations *relation.Graph // nil when Neo4j is unavailable
	clock     clock.Clock
	logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	registry memory.Registry,
	engine *retrieval.Engine,
	embedder embedding.Provider,
	relations *relation.Graph,
	clk clock.Clock,
	logger *zap.Logger,
) *Handler {
	if clk == nil {
		clk = clock.System{}
	}
	return &Handler{
		registry:  registry,
		engine:    engine,
		embedder:  embedder,
		relations: relations,
		clock:     clk,
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/agents", h.listAgents)
		r.Get("/world/status", h.worldStatus)

		r.Post("/agents/{id}/memories", h.addMemory)
		r.Get("/agents/{id}/memories", h.listMemories)

		r.Post("/agents/{id}/retrieve", h.retrieve)
		r.Post("/agents/{id}/retrieve/planning", h.retrievePlanning)
		r.Post("/agents/{id}/retrieve/reflection", h.retrieveReflection)
		r.Post("/agents/{id}/retrieve/social", h.retrieveSocial)
		r.Post("/agents/{id}/retrieve/similar", h.retrieveSimilar)
		r.Post("/agents/{id}/retrieve/knowledge", h.retrieveKnowledge)

		r.Post("/summarize", h.summarize)
		r.Get("/agents/{id}/relations", h.listRelations)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "mnemo"})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	ids, err := h.registry.AgentIDs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	ids, err := h.registry.AgentIDs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     "mnemo",
		"world_time":  h.clock.Now().Format(time.RFC3339),
		"agent_count": len(ids),
	})
}

type addMemoryRequest struct {
	Text       string    `json:"text"`
	Importance float64   `json:"importance"`
	Source     string    `json:"source"`
	Keywords   []string  `json:"keywords,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

func (h *Handler) addMemory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	source := memory.Source(req.Source)
	if req.Source == "" {
		source = memory.SourceObservation
	}
	if !memory.ValidSource(source) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source " + req.Source})
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = h.clock.Now()
	}
	rec := memory.NewRecord(agentID, req.Text, ts, req.Importance, source)
	rec.Keywords = req.Keywords

	vectors, err := h.embedder.Embed(r.Context(), []string{req.Text})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(vectors) > 0 {
		rec.Embedding = vectors[0]
	}
	// Memory text joins the corpus; queries never do.
	if idx, ok := h.embedder.(embedding.CorpusIndexer); ok {
		if err := idx.UpdateCorpus(r.Context(), []string{req.Text}); err != nil {
			h.logger.Warn("corpus update failed", zap.Error(err))
		}
	}

	if err := h.registry.Agent(agentID).Add(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) listMemories(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	st := h.registry.Agent(agentID)

	if src := r.URL.Query().Get("source"); src != "" {
		source := memory.Source(src)
		if !memory.ValidSource(source) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source " + src})
			return
		}
		recs, err := st.BySource(r.Context(), source)
		if err != nil {
			writeError(w, err)
			return
		}
		writeRecords(w, recs, "")
		return
	}

	recs, err := st.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, recs, "")
}

type retrieveRequest struct {
	Query         string          `json:"query"`
	K             int             `json:"k"`
	MinImportance float64         `json:"min_importance"`
	WindowHours   int             `json:"window_hours"`
	Sources       []memory.Source `json:"sources,omitempty"`
	MinRelevance  float64         `json:"min_relevance"` // 0 = no post-filter
	Summarize     bool            `json:"summarize"`
	MaxLength     int             `json:"max_length"`
}

func (h *Handler) retrieve(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	st := h.registry.Agent(agentID)
	recs, err := h.engine.Relevant(r.Context(), st, req.Query, retrieval.Params{
		K:             req.K,
		MinImportance: req.MinImportance,
		WindowHours:   req.WindowHours,
		Sources:       req.Sources,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if req.MinRelevance > 0 {
		qvec, embErr := h.engine.EmbedQuery(r.Context(), req.Query)
		if embErr != nil {
			writeError(w, embErr)
			return
		}
		recs = h.engine.FilterByRelevance(recs, qvec, req.MinRelevance)
	}

	writeRecords(w, recs, h.maybeSummary(recs, req.Summarize, req.MaxLength))
}

type planningRequest struct {
	Context   string   `json:"context"`
	Goals     []string `json:"goals,omitempty"`
	Summarize bool     `json:"summarize"`
	MaxLength int      `json:"max_length"`
}

func (h *Handler) retrievePlanning(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req planningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recs, err := h.engine.ForPlanning(r.Context(), h.registry.Agent(agentID), req.Context, req.Goals)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, recs, h.maybeSummary(recs, req.Summarize, req.MaxLength))
}

type reflectionRequest struct {
	PeriodHours int  `json:"period_hours"`
	Summarize   bool `json:"summarize"`
	MaxLength   int  `json:"max_length"`
}

func (h *Handler) retrieveReflection(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req reflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recs, err := h.engine.ForReflection(r.Context(), h.registry.Agent(agentID), req.PeriodHours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, recs, h.maybeSummary(recs, req.Summarize, req.MaxLength))
}

type socialRequest struct {
	OtherAgent string `json:"other_agent"`
	Context    string `json:"context"`
	Summarize  bool   `json:"summarize"`
	MaxLength  int    `json:"max_length"`
}

func (h *Handler) retrieveSocial(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req socialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recs, err := h.engine.ForSocial(r.Context(), h.registry.Agent(agentID), req.OtherAgent, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.relations != nil {
		note := req.Context
		if note == "" {
			note = "recalled memories of " + req.OtherAgent
		}
		if relErr := h.relations.RecordInteraction(r.Context(), agentID, req.OtherAgent, relation.KindConversation, note); relErr != nil {
			h.logger.Warn("record interaction failed", zap.Error(relErr))
		}
	}

	writeRecords(w, recs, h.maybeSummary(recs, req.Summarize, req.MaxLength))
}

type similarRequest struct {
	Situation string `json:"situation"`
	K         int    `json:"k"`
	Summarize bool   `json:"summarize"`
	MaxLength int    `json:"max_length"`
}

func (h *Handler) retrieveSimilar(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recs, err := h.engine.SimilarExperiences(r.Context(), h.registry.Agent(agentID), req.Situation, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, recs, h.maybeSummary(recs, req.Summarize, req.MaxLength))
}

type knowledgeRequest struct {
	Topic         string `json:"topic"`
	KnowledgeType string `json:"knowledge_type"`
	Summarize     bool   `json:"summarize"`
	MaxLength     int    `json:"max_length"`
}

func (h *Handler) retrieveKnowledge(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req knowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recs, err := h.engine.ForKnowledge(r.Context(), h.registry.Agent(agentID), req.Topic, req.KnowledgeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRecords(w, recs, h.maybeSummary(recs, req.Summarize, req.MaxLength))
}

type summarizeRequest struct {
	Memories  []*memory.Record `json:"memories"`
	MaxLength int              `json:"max_length"`
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"summary": retrieval.Summarize(req.Memories, req.MaxLength),
	})
}

func (h *Handler) listRelations(w http.ResponseWriter, r *http.Request) {
	if h.relations == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "relation graph not initialized"})
		return
	}
	agentID := chi.URLParam(r, "id")
	acqs, err := h.relations.Acquaintances(r.Context(), agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if acqs == nil {
		acqs = []*relation.Acquaintance{}
	}
	writeJSON(w, http.StatusOK, acqs)
}

func (h *Handler) maybeSummary(recs []*memory.Record, summarize bool, maxLength int) string {
	if !summarize {
		return ""
	}
	if maxLength <= 0 {
		maxLength = h.engine.Options().SummaryMaxLength
	}
	return retrieval.Summarize(recs, maxLength)
}

type recordsResponse struct {
	Count    int              `json:"count"`
	Memories []*memory.Record `json:"memories"`
	Summary  string           `json:"summary,omitempty"`
}

func writeRecords(w http.ResponseWriter, recs []*memory.Record, summary string) {
	if recs == nil {
		recs = []*memory.Record{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{
		Count:    len(recs),
		Memories: recs,
		Summary:  summary,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, retrieval.ErrInvalidParam) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
