package layouts

import (
	"fmt"
	"regexp"
	"strings"
)

var hexColorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Palette is the brand colour set exposed to pages as CSS variables.
type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Surface   string
}

func DefaultPalette() Palette {
	return Palette{
		Primary:   "#0f766e",
		Secondary: "#1e293b",
		Accent:    "#f59e0b",
		Surface:   "#f8fafc",
	}
}

func paletteCSSVars(p Palette) string {
	d := DefaultPalette()
	return fmt.Sprintf(
		":root{--brand-primary:%s;--brand-secondary:%s;--brand-accent:%s;--brand-surface:%s;}",
		colorOrDefault(p.Primary, d.Primary),
		colorOrDefault(p.Secondary, d.Secondary),
		colorOrDefault(p.Accent, d.Accent),
		colorOrDefault(p.Surface, d.Surface),
	)
}

func colorOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || !hexColorRegex.MatchString(trimmed) {
		return fallback
	}
	return trimmed
}
