package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Templates holds one parsed template set per page. Every set shares the
// layouts and partials and is entered through the "base" layout.
type Templates struct {
	pages map[string]*template.Template
}

// NewTemplates parses layouts/*.html and partials/*.html once, then clones
// them for each file in pages/. A page is named after its file without ".html".
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	shared := template.New("shared").Funcs(defaultFuncs())
	for _, pattern := range []string{"layouts/*.html", "partials/*.html"} {
		matches, err := fs.Glob(templatesFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("finding %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			continue
		}
		if shared, err = shared.ParseFS(templatesFS, matches...); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", pattern, err)
		}
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}

	t := &Templates{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")

		tmpl, err := shared.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning layouts for %s: %w", name, err)
		}
		if _, err := tmpl.ParseFS(templatesFS, page); err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

// Render executes page into w.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("rendering %s: %w", page, err)
	}
	return nil
}

// defaultFuncs returns the default template functions.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": ranking.FormatDuration,

		// itemMinutes returns a mix entry's runtime in minutes
		"itemMinutes": func(it db.MixItem) float64 {
			return it.Minutes()
		},

		// moodColor spreads the known moods around the hue wheel; unknown moods are grey
		"moodColor": func(mood string) template.CSS {
			return template.CSS(moodColor(mood)) //nolint:gosec // built from constants only
		},

		"moodTitle": func(m string) string {
			return ranking.Mood(m).Title()
		},

		// formatDate formats a time as "Jan 2, 2006"
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},

		"formatScore": func(f float64) string {
			return fmt.Sprintf("%.3f", f)
		},

		// add adds two integers (for 1-based indexing in loops)
		"add": func(a, b int) int {
			return a + b
		},
	}
}

func moodColor(mood string) string {
	moods := ranking.Moods()
	for i, m := range moods {
		if string(m) == mood {
			hue := i * 360 / len(moods)
			return fmt.Sprintf("hsl(%d, 65%%, 45%%)", hue)
		}
	}
	return "hsl(0, 0%, 45%)"
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	Flash       *FlashMessage
	CurrentPath string
}

// FlashMessage represents a temporary notification message.
type FlashMessage struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

// MoodData describes one mood for the home page.
type MoodData struct {
	Name   string
	Title  string
	Genres []string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Moods []MoodData
	Mixes []db.Mix
	Form  MixForm
}

// MixForm holds the values of the mix form so they survive a failed submit.
type MixForm struct {
	Source        string
	Mood          string
	MoodMode      string
	SeedID        string
	TargetMinutes string
	Limit         string
}

// MixPageData contains data for a single mix page.
type MixPageData struct {
	PageData
	Mix      db.Mix
	Items    []db.MixItem
	Duration string
}

// ErrorPageData contains data for the error page.
type ErrorPageData struct {
	PageData
	Status  int
	Message string
}

func moodData() []MoodData {
	moods := ranking.Moods()
	data := make([]MoodData, len(moods))
	for i, m := range moods {
		data[i] = MoodData{
			Name:   m.String(),
			Title:  m.Title(),
			Genres: ranking.MoodGenres(m),
		}
	}
	return data
}
