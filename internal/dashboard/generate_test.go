package dashboard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	if err := Render(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing env var")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")

	dir := t.TempDir()
	if err := Render(dir); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "cop-dashboard.json"))
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"uid": "uid1"`) {
		t.Fatalf("greptime uid not rendered")
	}
	for _, table := range []string{DefaultTables.Units, DefaultTables.Spectrum, DefaultTables.Incidents, DefaultTables.Commands} {
		if !strings.Contains(out, "FROM "+table+" ") {
			t.Errorf("dashboard does not query %s", table)
		}
	}
	var parsed map[string]any
	if err := json.Unmarshal(b, &parsed); err != nil {
		t.Fatalf("rendered dashboard is not valid JSON: %v", err)
	}
}
