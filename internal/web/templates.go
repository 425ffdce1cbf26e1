package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/justestif/muse/internal/catalog"
)

// Templates holds one parsed template set per page.
type Templates struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates parses every page under templatesFS with the shared layouts
// and partials.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render executes the base layout of page with data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}

	return tmpl.ExecuteTemplate(w, "base", data)
}

// load parses every page together with the layouts and partials.
func (t *Templates) load(templatesFS fs.FS) error {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return fmt.Errorf("finding layouts: %w", err)
	}

	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return fmt.Errorf("finding partials: %w", err)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	common := append(append([]string{}, layouts...), partials...)

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		files := append([]string{page}, common...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	return nil
}

// defaultFuncs returns the functions available to every page.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		// price formats a catalog price as "$68" or "$68.50"
		"price": func(p float64) string {
			if p == float64(int64(p)) {
				return fmt.Sprintf("$%d", int64(p))
			}
			return fmt.Sprintf("$%.2f", p)
		},

		// join joins strings with sep
		"join": func(items []string, sep string) string {
			return strings.Join(items, sep)
		},
	}
}

// PageData is embedded by every page's data.
type PageData struct {
	Title       string
	User        *UserData
	Flash       *FlashMessage
	CurrentPath string
}

// UserData contains signed-in user information.
type UserData struct {
	ID    string
	Name  string
	Email string
}

// FlashMessage is a one-off notice shown above the page content.
type FlashMessage struct {
	Type    string // "error" or "info"
	Message string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Authenticated bool
	Aesthetics    []string
	Items         []catalog.ClothingItem
}

// LoginPageData contains data for the sign-in page template. A failed
// sign-in arrives as a Flash.
type LoginPageData struct {
	PageData
	SignInEnabled bool
}
