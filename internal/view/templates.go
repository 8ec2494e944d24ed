package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Role        access.Role
	Nav         []access.NavSection
	Data        any
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	titleCaser := cases.Title(language.English)
	funcMap := template.FuncMap{
		"formatDate": func(v any) string {
			var t time.Time
			switch value := v.(type) {
			case time.Time:
				t = value
			case *time.Time:
				if value != nil {
					t = *value
				}
			}
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"roleLabel": func(r access.Role) string {
			canonical, ok := access.Canonical(r)
			if !ok {
				return titleCaser.String(string(r))
			}
			return titleCaser.String(strings.ReplaceAll(string(canonical), "_", " "))
		},
		"rolePath": func(r access.Role, target string) string {
			return access.BuildPath(target, r)
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
