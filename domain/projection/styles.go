package projection

// Theme holds the colours the front end resolved from its design tokens.
type Theme struct {
	Primary            string `json:"primary" yaml:"primary"`
	GradientBackground string `json:"gradientBackground" yaml:"gradient_background"`
	PrimaryFg          string `json:"primaryFg" yaml:"primary_fg"`
	Border             string `json:"border" yaml:"border"`
	Accent             string `json:"accent" yaml:"accent"`
	FontFamily         string `json:"fontFamily" yaml:"font_family"`
}

// DefaultTheme is used when no theme is configured
func DefaultTheme() Theme {
	return Theme{
		Primary:            "#4f46e5",
		GradientBackground: "#e5e7eb",
		PrimaryFg:          "#1f2937",
		Border:             "#d1d5db",
		Accent:             "#f59e0b",
		FontFamily:         "Inter, sans-serif",
	}
}

// StyleRule pairs a selector with declarations. Bind maps a style
// property to the element data key it is computed from on the client,
// for properties that cannot be written as a static value.
type StyleRule struct {
	Selector string                 `json:"selector"`
	Style    map[string]interface{} `json:"style"`
	Bind     map[string]string      `json:"bind,omitempty"`
}

// DefaultStyleRules is the stylesheet for the projected elements. Rules
// are ordered; later rules override earlier ones.
func DefaultStyleRules(t Theme) []StyleRule {
	empty := []string{t.GradientBackground, t.GradientBackground, t.GradientBackground, t.GradientBackground}

	return []StyleRule{
		{
			Selector: "node",
			Style: map[string]interface{}{
				"label":              "data(label)",
				"text-valign":        "bottom",
				"text-halign":        "center",
				"text-margin-y":      4,
				"background-color":   t.Primary,
				"color":              t.PrimaryFg,
				"text-opacity":       1,
				"background-opacity": 1,
				"font-family":        t.FontFamily,
				"font-size":          9,
				"width":              28,
				"height":             28,
				"shape":              "ellipse",
				"border-width":       0,
				"outline-width":      1,
				"outline-color":      t.Primary,
				"outline-opacity":    1,
				"outline-offset":     0,
				"background-fill":    "solid",
			},
		},
		{
			Selector: "node[" + KeyFill + "]",
			Style: map[string]interface{}{
				"background-fill":                 "linear-gradient",
				"background-gradient-direction":   "to-top",
				"background-gradient-stop-colors": []string{t.Primary, t.Primary, t.GradientBackground, t.GradientBackground},
			},
			Bind: map[string]string{"background-gradient-stop-positions": KeyFill},
		},
		{
			Selector: "node[" + KeyFill + " <= 0]",
			Style:    map[string]interface{}{"background-gradient-stop-colors": empty},
		},
		{
			Selector: `node[isRoot="true"]`,
			Style:    map[string]interface{}{"shape": "round-diamond", "width": 50, "height": 50},
		},
		{
			Selector: `node[isNonRootContainer="true"]`,
			Style:    map[string]interface{}{"width": 15, "height": 15},
		},
		{
			Selector: "node.dimmed",
			Style:    map[string]interface{}{"background-opacity": 0.25, "text-opacity": 0.4, "outline-opacity": 0.25},
		},
		{
			Selector: "node.highlight",
			Style:    map[string]interface{}{"background-opacity": 1, "text-opacity": 1},
		},
		{
			Selector: "node:selected",
			Style: map[string]interface{}{
				"outline-color":                   t.Accent,
				"background-color":                t.Accent,
				"background-gradient-stop-colors": []string{t.Accent, t.Accent, t.GradientBackground, t.GradientBackground},
			},
		},
		{
			Selector: "node[" + KeyFill + " <= 0]:selected",
			Style: map[string]interface{}{
				"background-color":                t.GradientBackground,
				"background-gradient-stop-colors": empty,
			},
		},
		{
			Selector: "edge",
			Style: map[string]interface{}{
				"curve-style":        "bezier",
				"target-arrow-shape": "triangle",
				"width":              1,
				"line-color":         t.Border,
				"target-arrow-color": t.Border,
				"line-opacity":       1,
			},
		},
		{Selector: "edge.dimmed", Style: map[string]interface{}{"line-opacity": 0.2}},
		{Selector: "edge.highlight", Style: map[string]interface{}{"line-opacity": 1}},
		{
			Selector: `edge[edgeType="concept"]`,
			Style:    map[string]interface{}{"target-arrow-shape": "none", "line-style": "dashed"},
		},
	}
}
