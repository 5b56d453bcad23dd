package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"heatloss-engine/internal/export"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/render"
	"heatloss-engine/internal/services"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

// Defaults for values a request leaves out
const (
	DefaultNumLayers  = 3
	DefaultBatchCount = 10
)

const maxBodyBytes = 1 << 16

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// QuestionHandler handles question API endpoints
type QuestionHandler struct {
	service *services.QuestionService
	health  HealthChecker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewQuestionHandler creates a new question handler. health may be nil when
// no database is in use.
func NewQuestionHandler(
	service *services.QuestionService,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		health:  health,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// QuestionRequest is the body of POST /api/questions/{kind}
type QuestionRequest struct {
	NumLayers *int   `json:"num_layers,omitempty"`
	Palette   string `json:"palette,omitempty"`
	Seed      *int64 `json:"seed,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// QuestionResponse is a generated question with its chart as a data URL
type QuestionResponse struct {
	*models.QuestionPayload
	SolutionImage string `json:"solution_image"`
}

// BatchResponse wraps the questions of one batch request
type BatchResponse struct {
	Data  []QuestionResponse `json:"data"`
	Total int                `json:"total"`
}

func newQuestionResponse(q *models.QuestionPayload) QuestionResponse {
	return QuestionResponse{
		QuestionPayload: q,
		SolutionImage:   "data:" + render.ContentType + ";base64," + base64.StdEncoding.EncodeToString(q.SolutionImage),
	}
}

// CreateQuestion handles POST /api/questions/{kind}
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, _, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	q, err := h.service.Generate(ctx, req)
	if err != nil {
		h.sendServiceError(w, r, "/api/questions/{kind}", err)
		return
	}

	h.sendJSON(w, newQuestionResponse(q), http.StatusCreated)
}

// CreateBatch handles POST /api/questions/{kind}/batch
func (h *QuestionHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	count := body.Count
	if count == 0 {
		count = DefaultBatchCount
	}

	questions, err := h.service.GenerateBatch(ctx, req, count)
	if err != nil {
		h.sendServiceError(w, r, "/api/questions/{kind}/batch", err)
		return
	}

	resp := BatchResponse{Data: make([]QuestionResponse, 0, len(questions)), Total: len(questions)}
	for _, q := range questions {
		resp.Data = append(resp.Data, newQuestionResponse(q))
	}
	h.sendJSON(w, resp, http.StatusCreated)
}

// GetChart handles GET /api/questions/{kind}/chart.png
func (h *QuestionHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	q, err := h.service.Generate(ctx, req)
	if err != nil {
		h.sendServiceError(w, r, "/api/questions/{kind}/chart.png", err)
		return
	}

	w.Header().Set("Content-Type", render.ContentType)
	w.Header().Set("X-Question-ID", q.ID)
	w.Header().Set("X-Question-Seed", strconv.FormatInt(q.Seed, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(q.SolutionImage)
}

// GetWorksheet handles GET /api/questions/{kind}/worksheet.xlsx
func (h *QuestionHandler) GetWorksheet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	count := DefaultBatchCount
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.sendError(w, r, "invalid count, expected an integer", http.StatusBadRequest)
			return
		}
		count = n
	}

	questions, err := h.service.GenerateBatch(ctx, req, count)
	if err != nil {
		h.sendServiceError(w, r, "/api/questions/{kind}/worksheet.xlsx", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorksheet(&buf, questions); err != nil {
		h.sendServiceError(w, r, "/api/questions/{kind}/worksheet.xlsx", err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-worksheet.xlsx"`, req.Kind))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ListCatalogs handles GET /api/catalogs
func (h *QuestionHandler) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	summaries := h.service.Catalogs()
	h.sendJSON(w, map[string]interface{}{
		"data":     summaries,
		"total":    len(summaries),
		"palettes": render.Palettes(),
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *QuestionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Catalog store unreachable", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "unhealthy"
			h.sendJSON(w, status, http.StatusServiceUnavailable)
			return
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

func (h *QuestionHandler) parseKind(w http.ResponseWriter, r *http.Request) (models.QuestionKind, bool) {
	kind, err := models.ParseQuestionKind(mux.Vars(r)["kind"])
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return kind, true
}

func (h *QuestionHandler) decodeBody(w http.ResponseWriter, r *http.Request) (services.GenerateRequest, QuestionRequest, bool) {
	var body QuestionRequest

	kind, ok := h.parseKind(w, r)
	if !ok {
		return services.GenerateRequest{}, body, false
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.sendError(w, r, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return services.GenerateRequest{}, body, false
	}

	req := services.GenerateRequest{
		Kind:      kind,
		NumLayers: DefaultNumLayers,
		Palette:   body.Palette,
		Seed:      body.Seed,
	}
	if body.NumLayers != nil {
		req.NumLayers = *body.NumLayers
	}
	return req, body, true
}

func (h *QuestionHandler) parseQuery(w http.ResponseWriter, r *http.Request) (services.GenerateRequest, bool) {
	kind, ok := h.parseKind(w, r)
	if !ok {
		return services.GenerateRequest{}, false
	}

	query := r.URL.Query()
	req := services.GenerateRequest{
		Kind:      kind,
		NumLayers: DefaultNumLayers,
		Palette:   query.Get("palette"),
	}

	if s := query.Get("num_layers"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.sendError(w, r, "invalid num_layers, expected an integer", http.StatusBadRequest)
			return req, false
		}
		req.NumLayers = n
	}

	if s := query.Get("seed"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.sendError(w, r, "invalid seed, expected a 64-bit integer", http.StatusBadRequest)
			return req, false
		}
		req.Seed = &seed
	}

	return req, true
}

// sendServiceError maps the error taxonomy onto status codes: caller errors
// are 400, everything else 500
func (h *QuestionHandler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	ctx := r.Context()
	kind := models.KindOf(err)

	if models.IsCallerError(err) {
		h.metrics.RecordAPIError("invalid_request", endpoint)
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Error(ctx, "[API_QUESTION_ERROR] Failed to generate question", logging.Fields{
		"endpoint":   endpoint,
		"error_kind": kind.String(),
	}, err)
	h.metrics.RecordAPIError(kind.String()+"_error", endpoint)
	h.sendError(w, r, "failed to generate question", http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *QuestionHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *QuestionHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      statusCode,
		RequestID: logging.RequestID(r.Context()),
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all question API routes
func (h *QuestionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/questions/{kind}", h.CreateQuestion).Methods("POST")
	router.HandleFunc("/api/questions/{kind}/batch", h.CreateBatch).Methods("POST")
	router.HandleFunc("/api/questions/{kind}/chart.png", h.GetChart).Methods("GET")
	router.HandleFunc("/api/questions/{kind}/worksheet.xlsx", h.GetWorksheet).Methods("GET")
	router.HandleFunc("/api/catalogs", h.ListCatalogs).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
