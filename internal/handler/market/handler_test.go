package market

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
)

func setupRouter(t *testing.T, apiKey string) *chi.Mux {
	t.Helper()
	tavily := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(search.Response{Results: []search.Result{
			{Title: "Calendly", URL: "https://calendly.com", Content: "Scheduling automation", Score: 0.91},
			{Title: "Zocdoc", URL: "https://zocdoc.com", Content: "Doctor appointment booking", Score: 0.87},
		}})
	}))
	t.Cleanup(tavily.Close)

	r := chi.NewRouter()
	New(search.NewService(search.NewClient(apiKey, tavily.URL, time.Second))).RegisterRoutes(r)
	return r
}

func post(r http.Handler, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/market/competitors", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestFindCompetitors(t *testing.T) {
	r := setupRouter(t, "tvly-test")

	resp := post(r, map[string]string{"industry": "healthcare", "product": "clinic scheduling"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Competitors []search.Competitor `json:"competitors"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Competitors) != 2 || body.Competitors[0].Name != "Calendly" {
		t.Fatalf("unexpected competitors %+v", body.Competitors)
	}
}

func TestFindCompetitorsValidation(t *testing.T) {
	r := setupRouter(t, "tvly-test")

	if resp := post(r, map[string]string{"industry": "healthcare"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestFindCompetitorsWithoutKey(t *testing.T) {
	r := setupRouter(t, "")

	if resp := post(r, map[string]string{"industry": "healthcare", "product": "clinic scheduling"}); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
