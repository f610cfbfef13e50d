package translation

import "strings"

// defaultLanguages maps ISO-639 codes to the names used in model prompts.
var defaultLanguages = map[string]string{
	"es":  "Spanish",
	"fr":  "French",
	"so":  "Somali",
	"hmn": "Hmong",
	"vi":  "Vietnamese",
	"ar":  "Arabic",
	"zh":  "Chinese",
	"ko":  "Korean",
}

// Languages resolves target codes to prompt names.
type Languages struct {
	names map[string]string
}

// NewLanguages returns the built-in table with overrides applied on top.
func NewLanguages(overrides map[string]string) Languages {
	names := make(map[string]string, len(defaultLanguages)+len(overrides))
	for code, name := range defaultLanguages {
		names[code] = name
	}
	for code, name := range overrides {
		names[strings.ToLower(code)] = name
	}
	return Languages{names: names}
}

// Name returns the language name for code, or the code itself when unknown.
func (l Languages) Name(code string) string {
	if name, ok := l.names[strings.ToLower(code)]; ok {
		return name
	}
	return code
}
