package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders task descriptions and keeps the last result so repeated Views of
// the same detail panel do not re-render.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
	lastIn   string
	lastOut  string
}

// render converts markdown into ANSI-styled text wrapped at width. Render failures fall back to the raw text.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
		r.lastIn, r.lastOut = "", ""
	}
	if r.lastIn == markdown && r.lastOut != "" {
		return r.lastOut
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	r.lastIn = markdown
	r.lastOut = strings.Trim(rendered, "\n")
	return r.lastOut
}
