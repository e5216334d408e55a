package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	t.Run("RecordRequest", func(t *testing.T) {
		exporter.RecordRequest("labor_law", "calculation", 800*time.Millisecond, true)
		exporter.RecordRequest("labor_law", "calculation", 1200*time.Millisecond, true)
		exporter.RecordRequest("family_law", "case_analysis", 500*time.Millisecond, false)

		exporter.SetActiveSessions(3)
	})

	t.Run("RecordClassification", func(t *testing.T) {
		exporter.RecordClassification("labor_law", "calculation", "model")
		exporter.RecordClassification("labor_law", "qa_retrieval", "rules")
		exporter.RecordClassification("labor_law", "qa_retrieval", "default")
	})

	t.Run("RecordToolCall", func(t *testing.T) {
		exporter.RecordToolCall("law_search", 50*time.Millisecond, true, "")
		exporter.RecordToolCall("calculator", 100*time.Millisecond, false, "timeout")
	})

	t.Run("RecordExecution", func(t *testing.T) {
		exporter.RecordExecution("calculation", 3, false)
		exporter.RecordExecution("case_analysis", 5, true)
	})

	t.Run("RecordCriticActivity", func(t *testing.T) {
		exporter.RecordVerdict(true)
		exporter.RecordVerdict(false)
		exporter.RecordRefinement()
	})

	t.Run("RecordLLMTokens", func(t *testing.T) {
		exporter.RecordLLMTokens("prompt", 100)
		exporter.RecordLLMTokens("completion", 50)
	})
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordRequest("labor_law", "calculation", 100*time.Millisecond, true)
	exporter.RecordToolCall("law_search", 50*time.Millisecond, true, "")
	exporter.RecordLLMTokens("prompt", 100)

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	w := httptest.NewRecorder()

	exporter.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{
		"lexisense_orchestrator_requests_total",
		"lexisense_tools_calls_total",
		"lexisense_llm_tokens_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected metric %s in output", metric)
		}
	}
}
