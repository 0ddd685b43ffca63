// Package router maps extract file names to destination tables.
//
// Two name shapes are recognized:
//   - CRUCE_<digits>_<suffix>.TXT, routed by the key CRUCE_<suffix>
//   - B002537_<digits>.TXT, routed by the key B002537_
//
// Anything else, including cleaned copies, is ignored.
package router

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/cleancopy"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/decode"
)

// GeneralDataKey is the route key of B002537_ files.
const GeneralDataKey = "B002537_"

var (
	cruceRe   = regexp.MustCompile(`^CRUCE_\d+_(.+)\.TXT$`)
	generalRe = regexp.MustCompile(`^B002537_\d+\.TXT$`)
)

// DefaultRoutes is the built-in route key to table map. Some keys carry
// spaces because the exporter names files that way.
func DefaultRoutes() map[string]string {
	return map[string]string{
		GeneralDataKey:                  "data_general",
		"CRUCE_AERONAVES":               "aeronaves",
		"CRUCE_ASIGNACIONES FAMILIARES": "asignaciones_familiares",
		"CRUCE_DATOS_IDENTIFICACION_PF": "datos_identificacion",
		"CRUCE_DESEMPLEO":               "desempleo",
		"CRUCE_EMBARCACIONES":           "embarcaciones",
		"CRUCE_EMPLEO_DEPENDIENTE":      "empleo_dependiente",
		"CRUCE_EMPLEO_INDEPENDIENTE":    "empleo_independiente",
		"CRUCE_FALLECIDOS":              "fallecidos",
		"CRUCE_INMUEBLES":               "inmuebles",
		"CRUCE_JUBILACIONES_PENSIONES":  "jubilaciones_pensiones",
		"CRUCE_OBRAS SOCIALES FULL":     "obras_sociales",
		"CRUCE_PADRON_ DEUDORES_BCRA":   "deudores_bcra",
		"CRUCE_PADRON_AUTOMOTORES":      "automotores",
		"CRUCE_PERSONAS_DOMICILIOS":     "personas_domicilios",
		"CRUCE_PERSONAS_JURIDICAS":      "personas_juridicas",
		"CRUCE_PNC SIN RUB":             "pensiones_no_contributivas",
		"CRUCE_RUBPS":                   "programas_sociales",
		"CRUCE_TCA_100":                 "tipo_de_documento",
		"CRUCE_TCA_200":                 "sexo",
		"CRUCE_TCA_5375":                "fallecidos_oficina_seccional",
		"CRUCE_TCA_5407":                "programas_sociales_tipo_prestacion",
		"CRUCE_TCA_5411":                "bases",
	}
}

// Router resolves file names to tables.
type Router struct {
	routes map[string]string
}

// New returns a Router over DefaultRoutes with overrides applied on top.
// An override with an empty table removes the route.
func New(overrides map[string]string) *Router {
	routes := DefaultRoutes()
	for k, v := range overrides {
		if v == "" {
			delete(routes, k)
			continue
		}
		routes[k] = v
	}
	return &Router{routes: routes}
}

// Key returns the route key of name (no directory), or false when the name
// matches neither shape.
func Key(name string) (string, bool) {
	if cleancopy.IsCleaned(name) {
		return "", false
	}
	name = decode.StripCompressionExt(name)
	if m := cruceRe.FindStringSubmatch(name); m != nil {
		return "CRUCE_" + m[1], true
	}
	if generalRe.MatchString(name) {
		return GeneralDataKey, true
	}
	return "", false
}

// Table returns the destination table for name.
func (r *Router) Table(name string) (string, bool) {
	key, ok := Key(name)
	if !ok {
		return "", false
	}
	table, ok := r.routes[key]
	return table, ok
}

// Routes returns a copy of the route map.
func (r *Router) Routes() map[string]string {
	out := make(map[string]string, len(r.routes))
	for k, v := range r.routes {
		out[k] = v
	}
	return out
}

// File is one routed input.
type File struct {
	Name  string
	Path  string
	Table string
}

// Scan lists dir in lexical order and returns the routable regular files.
func (r *Router) Scan(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		table, ok := r.Table(e.Name())
		if !ok {
			continue
		}
		out = append(out, File{
			Name:  e.Name(),
			Path:  filepath.Join(dir, e.Name()),
			Table: table,
		})
	}
	return out, nil
}
