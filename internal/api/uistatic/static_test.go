package uistatic

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesIndexForUnknownPaths(t *testing.T) {
	h := Handler()
	for _, path := range []string{"/", "/machine-logs"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Manufacturing Data Dashboard with GPT") {
			t.Fatalf("%s did not serve index.html", path)
		}
	}
}

func TestHandlerServesAssets(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "/v1/views") {
		t.Fatal("app.js does not call the views API")
	}
}

func TestHandlerMissingAssetIsNotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHandlerIndexIsNotCached(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/failure-incidents", nil))
	if got := rr.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("Cache-Control = %q", got)
	}
}

func TestAppClearsTableWhenPanelLoadFails(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	script := rr.Body.String()

	_, loadPanel, ok := strings.Cut(script, "async function loadPanel()")
	if !ok {
		t.Fatal("app.js has no loadPanel")
	}
	loadPanel, _, _ = strings.Cut(loadPanel, "async function generateInsight()")
	_, failure, ok := strings.Cut(loadPanel, "catch (error)")
	if !ok {
		t.Fatal("loadPanel does not handle errors")
	}
	clearAt := strings.Index(failure, "clearTable();")
	showAt := strings.Index(failure, "showError(error.message)")
	if clearAt < 0 || showAt < 0 || clearAt > showAt {
		t.Fatalf("loadPanel error path must clear the table before showing the error:\n%s", failure)
	}
}
