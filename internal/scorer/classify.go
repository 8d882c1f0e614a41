package scorer

import (
	"strings"

	"github.com/gridhound/gridhound/internal/model"
)

// ClassifyType assigns the categorical project type. The classification is
// derived from fuel and naming vocabulary only; it is independent of the
// confidence score and never feeds back into it.
func ClassifyType(in Input) model.ProjectType {
	fuel := strings.ToLower(in.FuelType)
	text := combinedText(in)

	switch {
	case containsAny(fuel, "solar", "photovoltaic", "pv"):
		return model.TypeSolar
	case containsAny(fuel, "wind"):
		return model.TypeWind
	case containsAny(fuel, "battery", "storage", "bess"):
		return model.TypeStorage
	case containsAny(fuel, "load", "demand", "behind-the-meter", "behind the meter", "off-take", "offtake"):
		return model.TypeDatacenter
	case containsAny(text, "data center", "datacenter", "data centre", "colocation", "hyperscale", "server farm"):
		return model.TypeDatacenter
	case containsAny(text, "manufactur", "factory", "fabrication", "smelter", "steel mill", "assembly plant"):
		return model.TypeManufacturing
	default:
		return model.TypeOther
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
