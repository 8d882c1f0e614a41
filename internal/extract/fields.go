package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldMap maps a logical field to its ordered candidate column names.
// Candidates are tried in priority order; earlier entries reflect the
// most recent reporting formats.
type FieldMap map[string][]string

// DefaultFieldMap returns the built-in candidate tables covering the
// column-name variants observed across queue exports.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		FieldQueueID: {
			"queue id", "queue number", "queue position", "queue #",
			"project id", "request number", "inr",
		},
		FieldName: {
			"project name", "name", "generating facility",
			"facility name", "project",
		},
		FieldCustomer: {
			"customer", "interconnection customer", "developer",
			"company", "applicant", "entity name",
		},
		FieldUtility: {
			"utility", "transmission owner", "balancing authority",
			"iso", "region", "to",
		},
		FieldCounty: {
			"county", "county name", "location county",
		},
		FieldState: {
			"state", "state name", "st",
		},
		FieldFuel: {
			"fuel", "fuel type", "type", "generation type",
			"resource type", "technology",
		},
		FieldStatus: {
			"status", "queue status", "study status", "project status",
		},
		FieldCapacity: {
			"capacity mw", "mw", "capacity", "summer mw", "max output mw",
			"mw energy", "size mw", "requested capacity", "mfo",
		},
	}
}

// LoadFieldMap reads candidate-key overrides from a YAML file and overlays
// them onto the defaults. Fields absent from the file keep their built-in
// candidates, so new format variants are additive.
func LoadFieldMap(path string) (FieldMap, error) {
	m := DefaultFieldMap()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read field map %s", path)
	}

	var doc struct {
		Fields FieldMap `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "extract: parse field map %s", path)
	}

	for field, candidates := range doc.Fields {
		if len(candidates) > 0 {
			m[field] = candidates
		}
	}
	return m, nil
}
