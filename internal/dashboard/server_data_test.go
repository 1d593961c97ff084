package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptodash/config"
	"cryptodash/internal/metrics"
	"cryptodash/internal/panel"
	"cryptodash/internal/refresh"
	"cryptodash/logger"
	"cryptodash/models"
)

type stubPanel struct {
	view panel.View
}

func (s *stubPanel) ID() string                      { return s.view.ID }
func (s *stubPanel) Definition() panel.Definition    { return panel.Definition{ID: s.view.ID} }
func (s *stubPanel) Start(ctx context.Context) error { return nil }
func (s *stubPanel) Stop()                           {}
func (s *stubPanel) View() panel.View                { return s.view }
func (s *stubPanel) Watch(fn func(panel.View))       {}

type panelList []*stubPanel

func (l panelList) panels() []panel.Panel {
	out := make([]panel.Panel, len(l))
	for i, p := range l {
		out[i] = p
	}
	return out
}

func chartView() panel.View {
	at := time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC)
	return panel.View{
		ID:      "bitcoin-chart",
		Title:   "Bitcoin Price (7 Days)",
		Kind:    panel.KindChart,
		Status:  panel.StatusReady,
		Summary: "$67,123",
		Points: []models.PricePoint{
			{Timestamp: "Apr 30, 2024", Price: 66000},
			{Timestamp: "May 1, 2024", Price: 67123},
		},
		FetchedAt: &at,
	}
}

func errorView() panel.View {
	return panel.View{
		ID:      "top-coins",
		Title:   "Top Cryptocurrencies",
		Kind:    panel.KindTable,
		Status:  panel.StatusError,
		Message: "Rate limit exceeded. Please wait a moment.",
	}
}

func coinsView() panel.View {
	return panel.View{
		ID:      "top-coins",
		Title:   "Top Cryptocurrencies",
		Kind:    panel.KindTable,
		Status:  panel.StatusReady,
		Summary: "$67,123.45",
		Coins: []models.CoinSummary{{
			Symbol:        "btc",
			Name:          "Bitcoin",
			PriceDisplay:  "67,123.45",
			ChangeDisplay: "3.46%",
			Direction:     models.DirectionUp,
			VolumeDisplay: "2.5B",
		}},
	}
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	return newTestServerWith(t, chartView(), errorView())
}

func newTestServerWith(t *testing.T, views ...panel.View) (*Server, http.Handler) {
	t.Helper()

	list := make(panelList, 0, len(views))
	for _, v := range views {
		list = append(list, &stubPanel{view: v})
	}

	log := logger.Logger()
	srv, err := NewServer(config.DashboardConfig{Enabled: true, RefreshInterval: time.Second, EventHistory: 10, LogHistory: 10}, Options{
		AppName:     "cryptodash",
		Attribution: "Made By Aviral Trivedi",
		Panels:      list.panels(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}, log)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	t.Cleanup(srv.cleanup)

	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}
	return srv, router
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestIndexRendersAllPanels(t *testing.T) {
	_, router := newTestServer(t)

	res := get(t, router, "/")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	body := res.Body.String()
	for _, want := range []string{
		"Bitcoin Price (7 Days)",
		"$67,123",
		"<polyline",
		"Rate limit exceeded. Please wait a moment.",
		"Made By Aviral Trivedi",
		`data-refresh-ms="1000"`,
		"Updated 3:04PM",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("request id header not set")
	}
}

func TestCoinTableHasColumnHeaders(t *testing.T) {
	_, router := newTestServerWith(t, coinsView())

	res := get(t, router, "/panels/top-coins")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	body := res.Body.String()
	head := strings.Index(body, "<thead>")
	rows := strings.Index(body, "<tbody>")
	if head < 0 || rows < head {
		t.Fatalf("table header missing or misplaced: %s", body)
	}
	for _, col := range []string{"Name", "Price", "24h Change", "Volume"} {
		if !strings.Contains(body[head:rows], ">"+col+"</th>") {
			t.Fatalf("missing column header %q", col)
		}
	}
	if !strings.Contains(body, "$67,123.45") || !strings.Contains(body, "Vol: $2.5B") {
		t.Fatalf("coin row missing: %s", body)
	}
}

func TestPanelFragment(t *testing.T) {
	_, router := newTestServer(t)

	res := get(t, router, "/panels/top-coins")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, `role="alert"`) || strings.Contains(body, "<html") {
		t.Fatalf("unexpected fragment: %s", body)
	}

	if res := get(t, router, "/panels/nope"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown panel, got %d", res.Code)
	}
}

func TestPanelsAPI(t *testing.T) {
	_, router := newTestServer(t)

	res := get(t, router, "/api/panels")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	var payload struct {
		Panels []panel.View `json:"panels"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Panels) != 2 || payload.Panels[0].ID != "bitcoin-chart" || payload.Panels[1].Status != "error" {
		t.Fatalf("unexpected panels: %+v", payload.Panels)
	}

	res = get(t, router, "/api/panels/bitcoin-chart")
	var view panel.View
	if err := json.Unmarshal(res.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Points) != 2 || view.Points[1].Price != 67123 {
		t.Fatalf("unexpected view: %+v", view)
	}

	if res := get(t, router, "/api/panels/nope"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestEventsEndpointEmitsStoredEvents(t *testing.T) {
	srv, router := newTestServer(t)

	metrics.NewRecorder(nil).CycleFinished("bitcoin-chart", refresh.StatusReady, time.Second)

	res := get(t, router, "/api/events")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	if len(srv.events.snapshot()) == 0 {
		t.Fatalf("event store empty")
	}
	if body := res.Body.String(); !strings.Contains(body, `"event":"cycle_finished"`) || !strings.Contains(body, `"status":"ready"`) {
		t.Fatalf("event missing from response: %s", res.Body.String())
	}
}

func TestLogsHealthAndMetricsEndpoints(t *testing.T) {
	srv, router := newTestServer(t)

	srv.log.WithComponent("test").Warn("something happened")

	if res := get(t, router, "/api/logs"); res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "something happened") {
		t.Fatalf("unexpected logs response: %d %s", res.Code, res.Body.String())
	}
	if res := get(t, router, "/healthz"); res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response: %d %s", res.Code, res.Body.String())
	}
	if res := get(t, router, "/metrics"); res.Code != http.StatusOK || res.Body.String() != "# metrics\n" {
		t.Fatalf("unexpected metrics response: %d %s", res.Code, res.Body.String())
	}
	if res := get(t, router, "/assets/dashboard.js"); res.Code != http.StatusOK {
		t.Fatalf("asset not served: %d", res.Code)
	}
}
