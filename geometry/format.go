package geometry

import "strings"

// Format is the closed set of CAD formats the extractor knows about
type Format string

const (
	FormatUnknown Format = ""
	FormatSTL     Format = "stl"
	FormatSTEP    Format = "step"
	FormatIGES    Format = "iges"
)

var extensionFormats = map[string]Format{
	"stl":  FormatSTL,
	"step": FormatSTEP,
	"stp":  FormatSTEP,
	"iges": FormatIGES,
	"igs":  FormatIGES,
}

// FormatFromExtension maps a file extension (".STL", "stp", ...) to its format.
// Unrecognized extensions map to FormatUnknown.
func FormatFromExtension(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	return FormatUnknown
}

// NormalizeExtension returns the extension lower-cased with a leading dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return ""
	}
	return "." + ext
}
