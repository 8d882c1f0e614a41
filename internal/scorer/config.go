// Package scorer estimates the likelihood that a queue record represents an
// undisclosed large-load facility, from weak textual and numeric signals.
package scorer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CapacityTier awards a bonus when capacity reaches MinMW. Only the highest
// tier reached applies.
type CapacityTier struct {
	MinMW float64 `yaml:"min_mw"`
	Bonus int     `yaml:"bonus"`
}

// Hotspot is one known large-load place-name. Matches are resolved in table
// order, not by bonus magnitude.
type Hotspot struct {
	Place string `yaml:"place"`
	State string `yaml:"state"`
	Bonus int    `yaml:"bonus"`
}

// NegativeTerm subtracts a term-specific penalty when generation vocabulary
// appears in the combined text.
type NegativeTerm struct {
	Term    string `yaml:"term"`
	Penalty int    `yaml:"penalty"`
}

// Config holds the full rule table. All lists are data-driven so new
// vocabulary is additive configuration, not code.
type Config struct {
	KeywordBonus int      `yaml:"keyword_bonus"`
	Keywords     []string `yaml:"keywords"`

	ActorBonus  int      `yaml:"actor_bonus"`
	KnownActors []string `yaml:"known_actors"`

	CapacityTiers []CapacityTier `yaml:"capacity_tiers"`

	LoadFuelBonus int      `yaml:"load_fuel_bonus"`
	LoadFuelTerms []string `yaml:"load_fuel_terms"`

	Hotspots []Hotspot `yaml:"hotspots"`

	NamingBonus    int      `yaml:"naming_bonus"`
	NamingPatterns []string `yaml:"naming_patterns"`

	SecondaryBonus   int      `yaml:"secondary_bonus"`
	SecondaryMaxHits int      `yaml:"secondary_max_hits"`
	SecondaryTerms   []string `yaml:"secondary_terms"`

	NegativeTerms []NegativeTerm `yaml:"negative_terms"`

	MaxNotes int `yaml:"max_notes"`
}

// DefaultConfig returns the built-in rule table.
func DefaultConfig() Config {
	return Config{
		KeywordBonus: 30,
		Keywords: []string{
			"data center", "datacenter", "data centre", "hyperscale",
			"colocation", "server farm", "cloud campus",
			"digital infrastructure", "compute campus",
		},

		ActorBonus: 35,
		KnownActors: []string{
			"amazon", "aws", "microsoft", "azure", "google", "alphabet",
			"meta platforms", "facebook", "oracle", "apple", "openai",
			"equinix", "digital realty", "qts", "cloudhq", "vantage",
			"stack infrastructure", "cyrusone", "aligned", "compass datacenters",
			"novva", "tract", "crusoe", "iron mountain", "edgeconnex",
		},

		CapacityTiers: []CapacityTier{
			{MinMW: 100, Bonus: 12},
			{MinMW: 200, Bonus: 18},
			{MinMW: 500, Bonus: 22},
			{MinMW: 1000, Bonus: 25},
		},

		LoadFuelBonus: 15,
		LoadFuelTerms: []string{
			"load", "behind-the-meter", "behind the meter", "demand",
			"off-take", "offtake", "end-use",
		},

		Hotspots: []Hotspot{
			{Place: "loudoun", State: "va", Bonus: 25},
			{Place: "prince william", State: "va", Bonus: 22},
			{Place: "fauquier", State: "va", Bonus: 15},
			{Place: "fairfax", State: "va", Bonus: 15},
			{Place: "licking", State: "oh", Bonus: 18},
			{Place: "new albany", State: "oh", Bonus: 18},
			{Place: "maricopa", State: "az", Bonus: 18},
			{Place: "pinal", State: "az", Bonus: 12},
			{Place: "ellis", State: "tx", Bonus: 12},
			{Place: "grant", State: "wa", Bonus: 15},
			{Place: "umatilla", State: "or", Bonus: 15},
			{Place: "crook", State: "or", Bonus: 12},
			{Place: "douglas", State: "ga", Bonus: 12},
			{Place: "fulton", State: "ga", Bonus: 10},
			{Place: "pottawattamie", State: "ia", Bonus: 12},
			{Place: "polk", State: "ia", Bonus: 10},
		},

		NamingBonus: 8,
		NamingPatterns: []string{
			`(?i)^project\s+[a-z0-9]+`,
			`(?i)\b(campus|facility|site)\s+[a-z0-9]{1,4}$`,
			`(?i)^[a-z]+\s+(ventures|holdings|development)\s+llc$`,
			`(?i)\bpropco\b`,
		},

		SecondaryBonus:   3,
		SecondaryMaxHits: 2,
		SecondaryTerms: []string{
			"energy services agreement", "large load", "firm service",
			"redundant", "redundancy", "uptime", "mission critical",
			"n+1", "dual feed", "24/7",
		},

		NegativeTerms: []NegativeTerm{
			{Term: "solar", Penalty: 40},
			{Term: "photovoltaic", Penalty: 40},
			{Term: "wind", Penalty: 40},
			{Term: "battery", Penalty: 35},
			{Term: "bess", Penalty: 35},
			{Term: "storage", Penalty: 35},
			{Term: "natural gas", Penalty: 30},
			{Term: "gas turbine", Penalty: 30},
			{Term: "combined cycle", Penalty: 30},
			{Term: "coal", Penalty: 30},
			{Term: "nuclear", Penalty: 30},
			{Term: "hydro", Penalty: 30},
			{Term: "biomass", Penalty: 30},
			{Term: "geothermal", Penalty: 30},
		},

		MaxNotes: 5,
	}
}

// LoadConfig overlays rule overrides from a YAML file onto the defaults.
// Only the sections present in the file are replaced.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "scorer: read rules %s", path)
	}

	var doc struct {
		Scorer Config `yaml:"scorer"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, eris.Wrapf(err, "scorer: parse rules %s", path)
	}

	o := doc.Scorer
	if o.KeywordBonus > 0 {
		cfg.KeywordBonus = o.KeywordBonus
	}
	if len(o.Keywords) > 0 {
		cfg.Keywords = o.Keywords
	}
	if o.ActorBonus > 0 {
		cfg.ActorBonus = o.ActorBonus
	}
	if len(o.KnownActors) > 0 {
		cfg.KnownActors = o.KnownActors
	}
	if len(o.CapacityTiers) > 0 {
		cfg.CapacityTiers = o.CapacityTiers
	}
	if o.LoadFuelBonus > 0 {
		cfg.LoadFuelBonus = o.LoadFuelBonus
	}
	if len(o.LoadFuelTerms) > 0 {
		cfg.LoadFuelTerms = o.LoadFuelTerms
	}
	if len(o.Hotspots) > 0 {
		cfg.Hotspots = o.Hotspots
	}
	if o.NamingBonus > 0 {
		cfg.NamingBonus = o.NamingBonus
	}
	if len(o.NamingPatterns) > 0 {
		cfg.NamingPatterns = o.NamingPatterns
	}
	if o.SecondaryBonus > 0 {
		cfg.SecondaryBonus = o.SecondaryBonus
	}
	if o.SecondaryMaxHits > 0 {
		cfg.SecondaryMaxHits = o.SecondaryMaxHits
	}
	if len(o.SecondaryTerms) > 0 {
		cfg.SecondaryTerms = o.SecondaryTerms
	}
	if len(o.NegativeTerms) > 0 {
		cfg.NegativeTerms = o.NegativeTerms
	}
	if o.MaxNotes > 0 {
		cfg.MaxNotes = o.MaxNotes
	}

	return cfg, nil
}

// ValidateConfig checks that a rule table is internally consistent.
func ValidateConfig(cfg Config) error {
	var errs []string

	for name, v := range map[string]int{
		"keyword_bonus":   cfg.KeywordBonus,
		"actor_bonus":     cfg.ActorBonus,
		"load_fuel_bonus": cfg.LoadFuelBonus,
		"naming_bonus":    cfg.NamingBonus,
		"secondary_bonus": cfg.SecondaryBonus,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	prev := 0.0
	for i, tier := range cfg.CapacityTiers {
		if i > 0 && tier.MinMW <= prev {
			errs = append(errs, "capacity_tiers must be strictly ascending by min_mw")
			break
		}
		if tier.Bonus < 0 {
			errs = append(errs, fmt.Sprintf("capacity tier %.0f MW bonus must be >= 0", tier.MinMW))
		}
		prev = tier.MinMW
	}

	for _, nt := range cfg.NegativeTerms {
		if nt.Penalty < 0 {
			errs = append(errs, fmt.Sprintf("negative term %q penalty must be >= 0", nt.Term))
		}
	}

	for _, pat := range cfg.NamingPatterns {
		if _, err := regexp.Compile(pat); err != nil {
			errs = append(errs, fmt.Sprintf("naming pattern %q does not compile", pat))
		}
	}

	if cfg.MaxNotes <= 0 {
		errs = append(errs, "max_notes must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
