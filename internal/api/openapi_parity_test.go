package api

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

var (
	routePattern     = regexp.MustCompile(`mux\.Handle(?:Func)?\("[A-Z]+ (/v1/[^"]*)"`)
	errorCodePattern = regexp.MustCompile(`http\.Status\w+, "([A-Z_]+)"`)
)

func TestOpenAPIDocumentsEveryRouteAndErrorCode(t *testing.T) {
	document := readPackageFile(t, "..", "..", "api", "openapi.yaml")

	source := readPackageFile(t, "handler.go") + readPackageFile(t, "views.go")
	routes := routePattern.FindAllStringSubmatch(source, -1)
	if len(routes) < 7 {
		t.Fatalf("found %d routes in handler.go, expected the full /v1 surface", len(routes))
	}
	for _, match := range routes {
		if !strings.Contains(document, "\n  "+match[1]+":") {
			t.Errorf("openapi missing path %s", match[1])
		}
	}

	codes := errorCodePattern.FindAllStringSubmatch(source, -1)
	if len(codes) == 0 {
		t.Fatal("no error codes found in handler sources")
	}
	for _, match := range codes {
		if !strings.Contains(document, "- "+match[1]+"\n") {
			t.Errorf("openapi error_code enum missing %s", match[1])
		}
	}
}

func readPackageFile(t *testing.T, elems ...string) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(append([]string{filepath.Dir(filename)}, elems...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}
