package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nimburion/querykit/pkg/query"
	"gopkg.in/yaml.v3"
)

// parseRequest reads a request argument. JSON and YAML flow syntax are both
// accepted; a blank argument is an empty request.
func parseRequest(arg string) (map[string]any, error) {
	if strings.TrimSpace(arg) == "" {
		return map[string]any{}, nil
	}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(arg), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", query.ErrInvalidRequestShape, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

type sortJSON struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

type optionsJSON struct {
	Fields []string   `json:"fields"`
	Skip   int        `json:"skip"`
	Limit  int        `json:"limit"`
	Sort   []sortJSON `json:"sort"`
}

type specJSON struct {
	Criteria map[string]any `json:"criteria"`
	Options  optionsJSON    `json:"options"`
}

func renderSpec(spec query.Spec) specJSON {
	opts := spec.Options()
	out := specJSON{
		Criteria: spec.Criteria().Native(),
		Options: optionsJSON{
			Fields: opts.Fields(),
			Skip:   opts.Skip(),
			Limit:  opts.Limit(),
		},
	}
	for _, e := range opts.Sort() {
		out.Options.Sort = append(out.Options.Sort, sortJSON{Field: e.Field, Direction: int(e.Direction)})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
