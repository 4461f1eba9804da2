package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	stampLayout = "02/01/2006, 15:04:05"
	longLayout  = "2 January 2006, 03:04 PM"
)

// LoadTemplates parses the embedded page templates. Times are shown in loc.
func LoadTemplates(loc *time.Location) (*template.Template, error) {
	if loc == nil {
		loc = time.Local
	}
	funcs := template.FuncMap{
		"deref":      deref,
		"derefFloat": derefFloat,
		"coord":      coord,
		"upper":      strings.ToUpper,
		"mapURL":     mapURL,
		"ago": func(v any) string {
			t, ok := timeOf(v)
			if !ok {
				return ""
			}
			return humanize.Time(t)
		},
		"stamp": func(v any) string {
			t, ok := timeOf(v)
			if !ok || t.IsZero() {
				return "N/A"
			}
			return t.In(loc).Format(stampLayout)
		},
		"longDate": func(t time.Time) string {
			return t.In(loc).Format(longLayout)
		},
	}

	tmpl, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}
	return tmpl, nil
}

func timeOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func coord(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.6f", *f)
}

func mapURL(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return ""
	}
	q := url.Values{"q": {fmt.Sprintf("%f,%f", *lat, *lon)}}
	return "https://www.google.com/maps?" + q.Encode()
}
