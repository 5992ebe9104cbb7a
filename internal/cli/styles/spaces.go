package styles

import (
	"fmt"
	"strings"
	"time"

	"github.com/mocraimer/chrome-spaces/internal/application/usecase"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// SpacesRenderer renders space listings.
type SpacesRenderer struct {
	theme *Theme
}

// NewSpacesRenderer creates a renderer with the given theme.
func NewSpacesRenderer(theme *Theme) *SpacesRenderer {
	return &SpacesRenderer{theme: theme}
}

// RenderList renders active spaces followed by the archive.
func (r *SpacesRenderer) RenderList(out *usecase.ListSpacesOutput) string {
	var b strings.Builder

	b.WriteString(r.theme.Title.Render("Active Spaces"))
	b.WriteString("\n")
	if len(out.Spaces) == 0 {
		b.WriteString(r.theme.Subtle.Render("  (none)"))
		b.WriteString("\n")
	}
	for _, info := range out.Spaces {
		b.WriteString(r.renderSpace(info))
	}

	b.WriteString("\n")
	b.WriteString(r.theme.Title.Render("Archived Spaces"))
	b.WriteString("\n")
	if len(out.Archived) == 0 {
		b.WriteString(r.theme.Subtle.Render("  (none)"))
		b.WriteString("\n")
	}
	for _, rec := range out.Archived {
		b.WriteString(r.renderArchived(rec))
	}

	return b.String()
}

func (r *SpacesRenderer) renderSpace(info usecase.SpaceInfo) string {
	var badges []string
	if info.Bound {
		badges = append(badges, r.theme.Badge.Render(fmt.Sprintf("window %d", info.WindowID)))
	} else {
		badges = append(badges, r.theme.BadgeMuted.Render("no window"))
	}
	if info.Degraded {
		badges = append(badges, r.theme.WarningStyle.Render("persistence degraded"))
	}

	return fmt.Sprintf("  %s %s %s\n    %s\n",
		r.theme.Highlight.Render(info.Space.Name),
		r.theme.Subtle.Render(shortID(info.Space.ID)),
		strings.Join(badges, " "),
		r.theme.Subtle.Render(summarizeTabs(info.Space.URLs)),
	)
}

func (r *SpacesRenderer) renderArchived(rec *entity.ArchivedSpace) string {
	return fmt.Sprintf("  %s %s %s\n    %s\n",
		r.theme.Normal.Render(rec.Space.Name),
		r.theme.Subtle.Render(shortID(rec.Space.ID)),
		r.theme.Subtle.Render("archived "+rec.ArchivedAt.Format(time.DateTime)),
		r.theme.Subtle.Render(summarizeTabs(rec.Space.URLs)),
	)
}

func shortID(id entity.SpaceID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func summarizeTabs(urls []string) string {
	switch len(urls) {
	case 0:
		return "no tabs"
	case 1:
		return "1 tab: " + urls[0]
	default:
		return fmt.Sprintf("%d tabs: %s, ...", len(urls), urls[0])
	}
}
