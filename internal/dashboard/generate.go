package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"cop-sim/internal/sim"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Tables are the GreptimeDB tables the dashboards query.
type Tables struct {
	Units     string
	Spectrum  string
	Incidents string
	Commands  string
}

// DefaultTables matches the tables written by sim.GreptimeDBWriter.
var DefaultTables = Tables{
	Units:     sim.TableUnits,
	Spectrum:  sim.TableSpectrum,
	Incidents: sim.TableIncidents,
	Commands:  sim.TableCommands,
}

// Render writes one Grafana dashboard per embedded template to outDir.
// Templates read the datasource uid from GREPTIMEDB_DATASOURCE_UID.
func Render(outDir string) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	tpl, err := template.New("dashboards").Funcs(funcMap).ParseFS(templates, "templates/*.json.tmpl")
	if err != nil {
		return fmt.Errorf("parse dashboard templates: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, t := range tpl.Templates() {
		name := t.Name()
		if !strings.HasSuffix(name, ".tmpl") {
			continue
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(name, ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, DefaultTables); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
