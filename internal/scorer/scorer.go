package scorer

import (
	"fmt"
	"regexp"
	"strings"
)

// Input is the normalized record slice the scorer looks at. The scorer is a
// pure function of this struct: no store access, no clock, no side effects.
type Input struct {
	Name       string
	Customer   string
	Developer  string
	County     string
	State      string
	FuelType   string
	CapacityMW float64
}

// Result is the scoring outcome. Notes is the display-truncated rationale
// trail; Signals is the complete list of fired rule labels for audit.
type Result struct {
	Score   int      `json:"score"`
	Notes   []string `json:"notes"`
	Signals []string `json:"signals"`
}

// Suspect applies a classification cutoff. The cutoff belongs to the caller,
// not the scorer: two profiles (40 and 60) coexist over the same scores.
func (r Result) Suspect(cutoff int) bool {
	return r.Score >= cutoff
}

// rule is one independent scoring signal: evaluated against the input, it
// either fires with a delta and a label, or stays silent.
type rule struct {
	name string
	eval func(in Input, text string) (delta int, label string, fired bool)
}

// Scorer evaluates the rule table in a fixed order so results are
// reproducible and explainable signal by signal.
type Scorer struct {
	cfg      Config
	rules    []rule
	patterns []*regexp.Regexp
}

// New compiles a Scorer from the rule table. Invalid naming patterns are
// rejected up front via ValidateConfig.
func New(cfg Config) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &Scorer{cfg: cfg}
	for _, pat := range cfg.NamingPatterns {
		s.patterns = append(s.patterns, regexp.MustCompile(pat))
	}
	s.rules = []rule{
		{name: "keyword", eval: s.evalKeyword},
		{name: "actor", eval: s.evalActor},
		{name: "capacity", eval: s.evalCapacity},
		{name: "load_fuel", eval: s.evalLoadFuel},
		{name: "hotspot", eval: s.evalHotspot},
		{name: "naming", eval: s.evalNaming},
		{name: "secondary", eval: s.evalSecondary},
		{name: "negative", eval: s.evalNegative},
	}
	return s, nil
}

// Score folds the rule table over the input. Deterministic and idempotent:
// identical input always yields an identical Result. The final score is
// clamped to [0,100].
func (s *Scorer) Score(in Input) Result {
	text := combinedText(in)

	score := 0
	var signals []string
	for _, r := range s.rules {
		delta, label, fired := r.eval(in, text)
		if !fired {
			continue
		}
		score += delta
		signals = append(signals, label)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	notes := signals
	if len(notes) > s.cfg.MaxNotes {
		notes = notes[:s.cfg.MaxNotes]
	}
	if len(signals) == 0 {
		// Distinguish "scored, nothing found" from "not yet scored."
		notes = []string{"no signals"}
	}

	return Result{Score: score, Notes: notes, Signals: signals}
}

// combinedText is the searchable haystack: name, customer, fuel, developer.
func combinedText(in Input) string {
	return strings.ToLower(strings.Join([]string{in.Name, in.Customer, in.FuelType, in.Developer}, " "))
}

func (s *Scorer) evalKeyword(_ Input, text string) (int, string, bool) {
	for _, kw := range s.cfg.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return s.cfg.KeywordBonus, "keyword: " + kw, true
		}
	}
	return 0, "", false
}

func (s *Scorer) evalActor(_ Input, text string) (int, string, bool) {
	for _, actor := range s.cfg.KnownActors {
		if strings.Contains(text, strings.ToLower(actor)) {
			return s.cfg.ActorBonus, "known actor: " + actor, true
		}
	}
	return 0, "", false
}

func (s *Scorer) evalCapacity(in Input, _ string) (int, string, bool) {
	// Tiers are ascending; the highest tier reached wins, non-cumulative.
	best := -1
	for i, tier := range s.cfg.CapacityTiers {
		if in.CapacityMW >= tier.MinMW {
			best = i
		}
	}
	if best < 0 {
		return 0, "", false
	}
	tier := s.cfg.CapacityTiers[best]
	return tier.Bonus, fmt.Sprintf("capacity %.0f+ MW", tier.MinMW), true
}

func (s *Scorer) evalLoadFuel(in Input, _ string) (int, string, bool) {
	fuel := strings.ToLower(in.FuelType)
	if fuel == "" {
		return 0, "", false
	}
	for _, term := range s.cfg.LoadFuelTerms {
		if strings.Contains(fuel, strings.ToLower(term)) {
			return s.cfg.LoadFuelBonus, "load-type fuel: " + term, true
		}
	}
	return 0, "", false
}

func (s *Scorer) evalHotspot(in Input, _ string) (int, string, bool) {
	place := strings.ToLower(in.County + " " + in.State)
	for _, h := range s.cfg.Hotspots {
		if !strings.Contains(place, strings.ToLower(h.Place)) {
			continue
		}
		if h.State != "" && !strings.Contains(place, strings.ToLower(h.State)) {
			continue
		}
		label := "hotspot: " + h.Place
		if h.State != "" {
			label += ", " + h.State
		}
		return h.Bonus, label, true
	}
	return 0, "", false
}

func (s *Scorer) evalNaming(in Input, _ string) (int, string, bool) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, "", false
	}
	for _, pat := range s.patterns {
		if pat.MatchString(name) {
			return s.cfg.NamingBonus, "suspicious name pattern", true
		}
	}
	return 0, "", false
}

func (s *Scorer) evalSecondary(_ Input, text string) (int, string, bool) {
	var hits []string
	for _, term := range s.cfg.SecondaryTerms {
		if strings.Contains(text, strings.ToLower(term)) {
			hits = append(hits, term)
			if len(hits) >= s.cfg.SecondaryMaxHits {
				break
			}
		}
	}
	if len(hits) == 0 {
		return 0, "", false
	}
	return s.cfg.SecondaryBonus * len(hits), "secondary: " + strings.Join(hits, ", "), true
}

func (s *Scorer) evalNegative(_ Input, text string) (int, string, bool) {
	for _, nt := range s.cfg.NegativeTerms {
		if strings.Contains(text, strings.ToLower(nt.Term)) {
			return -nt.Penalty, fmt.Sprintf("generation signal: %s (-%d)", nt.Term, nt.Penalty), true
		}
	}
	return 0, "", false
}
