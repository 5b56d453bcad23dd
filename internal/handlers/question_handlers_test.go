package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/export"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/render"
	"heatloss-engine/internal/services"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

type questionBody struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Prompt        string `json:"prompt"`
	Seed          int64  `json:"seed"`
	SolutionImage string `json:"solution_image"`
	Parameters    struct {
		Construction string            `json:"construction"`
		Layers       []json.RawMessage `json:"layers"`
	} `json:"parameters"`
	Solution struct {
		TotalResistance float64 `json:"total_resistance"`
		UValue          float64 `json:"u_value"`
	} `json:"solution"`
}

type failingHealth struct{}

func (failingHealth) HealthCheck(context.Context) error { return errors.New("connection refused") }

func newTestRouter(t *testing.T, health HealthChecker) (*mux.Router, *metrics.Collector) {
	t.Helper()
	registry, err := catalog.EmbeddedRegistry()
	require.NoError(t, err)

	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	logger := logging.NewNopLogger()
	svc := services.NewQuestionService(registry, render.New(render.DefaultOptions()), logger, collector)

	return NewRouter(NewQuestionHandler(svc, health, logger, collector), collector, logger), collector
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateQuestion(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/api/questions/heat_loss", `{"num_layers":4,"seed":42}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body questionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "heat_loss", body.Kind)
	assert.Equal(t, int64(42), body.Seed)
	assert.Len(t, body.Parameters.Layers, 4)
	assert.True(t, strings.HasPrefix(body.SolutionImage, "data:image/png;base64,"))
	assert.Contains(t, body.Prompt, body.Parameters.Construction)
	assert.InDelta(t, 1/body.Solution.TotalResistance, body.Solution.UValue, 1e-9)
}

func TestCreateQuestion_Defaults(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/api/questions/thermal-bridging", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body questionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "thermal_bridging", body.Kind)
	assert.Len(t, body.Parameters.Layers, DefaultNumLayers)
}

func TestCreateQuestion_SameSeedSameAnswer(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	var answers []float64
	for i := 0; i < 2; i++ {
		rec := serve(router, http.MethodPost, "/api/questions/thermal_bridging", `{"num_layers":5,"seed":99}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var body questionBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		answers = append(answers, body.Solution.TotalResistance)
	}
	assert.Equal(t, answers[0], answers[1])
}

func TestCreateQuestion_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{name: "layer count too small", target: "/api/questions/heat_loss", body: `{"num_layers":2}`},
		{name: "layer count too large", target: "/api/questions/heat_loss", body: `{"num_layers":6}`},
		{name: "unknown kind", target: "/api/questions/roof", body: `{}`},
		{name: "unknown palette", target: "/api/questions/heat_loss", body: `{"palette":"neon"}`},
		{name: "unknown field", target: "/api/questions/heat_loss", body: `{"layers":3}`},
		{name: "malformed json", target: "/api/questions/heat_loss", body: `{"num_layers":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, nil)

			rec := serve(router, http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, "Bad Request", resp.Error)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, rec.Header().Get(RequestIDHeader), resp.RequestID)
		})
	}
}

func TestCreateBatch(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/api/questions/heat_loss/batch", `{"num_layers":3,"count":3,"seed":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data  []questionBody `json:"data"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	for i, q := range resp.Data {
		assert.Equal(t, int64(5+i), q.Seed)
	}

	rec = serve(router, http.MethodPost, "/api/questions/heat_loss/batch", `{"count":500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChart(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/api/questions/thermal_bridging/chart.png?num_layers=5&seed=3&palette=colorblind", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, render.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("X-Question-Seed"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestGetChart_BadQuery(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, q := range []string{"num_layers=abc", "seed=1.5", "num_layers=7"} {
		rec := serve(router, http.MethodGet, "/api/questions/heat_loss/chart.png?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetWorksheet(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/api/questions/heat_loss/worksheet.xlsx?count=2&seed=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "heat_loss-worksheet.xlsx")
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = serve(router, http.MethodGet, "/api/questions/heat_loss/worksheet.xlsx?count=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCatalogs(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/api/catalogs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data     []services.CatalogSummary `json:"data"`
		Total    int                       `json:"total"`
		Palettes []string                  `json:"palettes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, models.KindHeatLoss, resp.Data[0].Kind)
	assert.Equal(t, []int{3, 4, 5}, resp.Data[0].LayerCounts)
	assert.Contains(t, resp.Palettes, "colorblind")
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	router, _ = newTestRouter(t, failingHealth{})
	rec = serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestRequestID_Echoed(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestInstrument_RecordsRouteTemplate(t *testing.T) {
	router, collector := newTestRouter(t, nil)

	serve(router, http.MethodGet, "/api/catalogs", "")
	serve(router, http.MethodPost, "/api/questions/heat_loss", `{"num_layers":9}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.APIRequestsTotal.WithLabelValues("/api/catalogs", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.APIRequestsTotal.WithLabelValues("/api/questions/{kind}", "POST", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues("invalid_request", "/api/questions/{kind}")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.InFlightRequests))
}

func TestSendServiceError_InternalErrors(t *testing.T) {
	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	h := NewQuestionHandler(nil, nil, logging.NewNopLogger(), collector)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "computation", err: &models.DivisionError{Quantity: "U-value"}, want: "computation_error"},
		{name: "configuration", err: &models.ConfigurationError{Source: "heat_loss", Message: "broken"}, want: "configuration_error"},
		{name: "untyped", err: errors.New("boom"), want: "computation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.sendServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), "/test/"+tt.name, tt.err)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			// internal details stay in the logs
			assert.NotContains(t, rec.Body.String(), tt.err.Error())
			assert.Equal(t, 1.0, testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues(tt.want, "/test/"+tt.name)))
		})
	}
}

func TestDocs(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/api/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var spec map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Equal(t, "3.0.0", spec["openapi"])
	assert.Contains(t, spec["paths"], "/api/questions/{kind}")

	rec = serve(router, http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/docs/openapi.json")
}
