package analytics

import "strings"

const (
	// UnknownProfile labels accounts without a brain profile
	UnknownProfile = "unknown"
	// DefaultColor is used for labels missing from the palette
	DefaultColor = "#9CA3AF"
)

// Palette maps brain-profile labels to display colors.
// Lookups are case-insensitive.
type Palette struct {
	Colors   map[string]string `yaml:"colors" json:"colors"`
	Fallback string            `yaml:"fallback" json:"fallback"`
}

// DefaultPalette returns the built-in profile colors
func DefaultPalette() Palette {
	return Palette{
		Colors: map[string]string{
			"connector":    "#F59E0B",
			"explorer":     "#10B981",
			"nurturer":     "#EC4899",
			"planner":      "#3B82F6",
			"protector":    "#8B5CF6",
			UnknownProfile: "#6B7280",
		},
		Fallback: DefaultColor,
	}
}

// Color resolves the display color for label
func (p Palette) Color(label string) string {
	if c, ok := p.Colors[strings.ToLower(label)]; ok && c != "" {
		return c
	}
	if p.Fallback != "" {
		return p.Fallback
	}
	return DefaultColor
}
