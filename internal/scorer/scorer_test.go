package scorer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestScoreSuspectedDatacenter(t *testing.T) {
	s := newTestScorer(t)

	// Shell LLC requesting 250 MW of load in Loudoun County for a known
	// hyperscaler: known actor + capacity tier + load fuel + hotspot +
	// naming pattern.
	result := s.Score(Input{
		Name:       "Project Alpha LLC",
		Customer:   "Amazon Data Services",
		CapacityMW: 250,
		County:     "Loudoun",
		State:      "VA",
		FuelType:   "Load",
	})

	assert.GreaterOrEqual(t, result.Score, 90)
	assert.LessOrEqual(t, result.Score, 100)
	assert.True(t, result.Suspect(40))
	assert.True(t, result.Suspect(60))

	joined := ""
	for _, sig := range result.Signals {
		joined += sig + "\n"
	}
	assert.Contains(t, joined, "known actor: amazon")
	assert.Contains(t, joined, "capacity 200+ MW")
	assert.Contains(t, joined, "load-type fuel")
	assert.Contains(t, joined, "hotspot: loudoun, va")
}

func TestScoreGenerationProjectFloorsAtZero(t *testing.T) {
	s := newTestScorer(t)

	result := s.Score(Input{
		Name:       "Sunrise Solar Farm",
		CapacityMW: 300,
		FuelType:   "Solar",
	})

	// Capacity tier (+18) minus the solar penalty (-40) clamps to zero.
	assert.Equal(t, 0, result.Score)
	assert.False(t, result.Suspect(40))
}

func TestScoreClampedAtHundred(t *testing.T) {
	s := newTestScorer(t)

	result := s.Score(Input{
		Name:       "Project X Hyperscale Data Center Campus",
		Customer:   "Microsoft",
		CapacityMW: 1500,
		County:     "Loudoun",
		State:      "VA",
		FuelType:   "Load",
	})

	assert.Equal(t, 100, result.Score)
}

func TestScoreDeterministic(t *testing.T) {
	s := newTestScorer(t)

	in := Input{
		Name:       "Project Delta",
		Customer:   "CloudHQ",
		CapacityMW: 400,
		County:     "Prince William",
		State:      "VA",
	}

	first := s.Score(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(in))
	}
}

func TestScoreNoSignals(t *testing.T) {
	s := newTestScorer(t)

	result := s.Score(Input{Name: "Greenfield Substation Upgrade", CapacityMW: 60})

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Signals)
	assert.Equal(t, []string{"no signals"}, result.Notes)
}

func TestScoreCapacityTierHighestOnly(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name string
		mw   float64
		want int
	}{
		{"below lowest tier", 99, 0},
		{"first tier", 100, 12},
		{"second tier", 250, 18},
		{"third tier", 500, 22},
		{"top tier", 2000, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Score(Input{Name: "plain project", CapacityMW: tt.mw})
			assert.Equal(t, tt.want, result.Score)
		})
	}
}

func TestScoreHotspotTableOrderWins(t *testing.T) {
	s := newTestScorer(t)

	// "loudoun" appears before "fairfax" in the table; a record matching
	// both gets loudoun's bonus only.
	result := s.Score(Input{
		Name:   "plain project",
		County: "Loudoun (near Fairfax)",
		State:  "VA",
	})

	assert.Equal(t, 25, result.Score)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, "hotspot: loudoun, va", result.Signals[0])
}

func TestScoreNegativeTermSpecificPenalty(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name    string
		fuel    string
		penalty int
	}{
		{"solar", "Solar", 40},
		{"wind", "Wind", 40},
		{"battery", "Battery", 35},
		{"gas", "Natural Gas", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Baseline high enough that the penalty stays observable
			// above the zero floor.
			base := s.Score(Input{Name: "data center campus", Customer: "Amazon"})
			withFuel := s.Score(Input{Name: "data center campus", Customer: "Amazon", FuelType: tt.fuel})
			assert.Equal(t, base.Score-tt.penalty, withFuel.Score)
		})
	}
}

func TestScoreSecondaryCapped(t *testing.T) {
	s := newTestScorer(t)

	// Three secondary terms present, but hits are capped at two.
	result := s.Score(Input{Name: "mission critical uptime redundant facility q"})

	fired := 0
	for _, sig := range result.Signals {
		if strings.HasPrefix(sig, "secondary:") {
			fired++
		}
	}
	require.Equal(t, 1, fired, "secondary rule should fire once")
	// naming (+8 for "facility q") + secondary (+3 x 2).
	assert.Equal(t, 14, result.Score)
}

func TestScoreNotesTruncated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxNotes = 2
	s, err := New(cfg)
	require.NoError(t, err)

	result := s.Score(Input{
		Name:       "Project Alpha LLC data center",
		Customer:   "Amazon",
		CapacityMW: 1200,
		County:     "Loudoun",
		State:      "VA",
		FuelType:   "Load",
	})

	assert.Len(t, result.Notes, 2)
	assert.Greater(t, len(result.Signals), 2)
	assert.Equal(t, result.Signals[:2], result.Notes)
}

func TestSuspectCutoffs(t *testing.T) {
	r := Result{Score: 45}
	assert.True(t, r.Suspect(40))
	assert.False(t, r.Suspect(60))
	assert.True(t, Result{Score: 60}.Suspect(60))
}
