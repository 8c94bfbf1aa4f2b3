package order

import "regexp"

// Location is a warehouse slot decomposed from a model-name tag.
type Location struct {
	Shelf string `json:"shelf"`
	Level string `json:"level"`
	Box   string `json:"box,omitempty"`
}

// locationTagPattern matches the picking-location convention embedded in
// model names: "[<shelf>N<level>]" or "[<shelf>N<level>-<box>]",
// e.g. "[12N3-4] Red / L".
var locationTagPattern = regexp.MustCompile(`\[([0-9A-Za-z]+?)N([0-9]+)(?:-([0-9]+))?\]`)

// ParseLocation extracts the location tag from a model name. It returns nil
// when the name carries no tag. Parsing is pure: the same input always
// yields the same result.
func ParseLocation(modelName string) *Location {
	m := locationTagPattern.FindStringSubmatch(modelName)
	if m == nil {
		return nil
	}
	return &Location{Shelf: m[1], Level: m[2], Box: m[3]}
}
