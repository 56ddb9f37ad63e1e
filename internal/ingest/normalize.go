package ingest

import "strings"

// nullTokens are the cell spellings the source uses for missing values.
var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"NaN":  {},
	"NAN":  {},
	"NULL": {},
	"null": {},
	"None": {},
	"-":    {},
}

// NormalizeCell trims a raw cell and maps the source's null spellings to nil.
func NormalizeCell(raw string) *string {
	v := strings.TrimSpace(raw)
	if _, ok := nullTokens[v]; ok {
		return nil
	}
	return &v
}
