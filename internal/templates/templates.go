// Package templates renders the HTML pages. Each page is parsed together
// with base.html into its own template set so every page can define the
// same "content" block.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	ginrender "github.com/gin-gonic/gin/render"

	"github.com/emilythestrangee/microblog/internal/models"
)

//go:embed html/*.html
var files embed.FS

const layout = "base.html"

// Renderer implements gin's render.HTMLRender over the embedded pages.
type Renderer struct {
	pages map[string]*template.Template
}

var _ ginrender.HTMLRender = (*Renderer)(nil)

// Funcs are the helpers available to every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"avatar": func(u any, size int) string {
			switch v := u.(type) {
			case *models.User:
				return v.Avatar(size)
			case models.User:
				return v.Avatar(size)
			}
			return ""
		},
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return humanize.Time(t)
		},
		"iso": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
	}
}

// New parses base.html with each page under html/.
func New() (*Renderer, error) {
	names, err := fs.Glob(files, "html/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		page := path.Base(name)
		if page == layout {
			continue
		}
		tmpl, err := template.New(layout).Funcs(Funcs()).ParseFS(files, "html/"+layout, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Instance returns the render for page name, for example "index.html".
func (r *Renderer) Instance(name string, data any) ginrender.Render {
	tmpl, ok := r.pages[name]
	if !ok {
		panic(fmt.Sprintf("templates: unknown page %q", name))
	}
	return ginrender.HTML{Template: tmpl, Name: layout, Data: data}
}
