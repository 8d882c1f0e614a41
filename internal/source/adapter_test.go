package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridhound/gridhound/internal/model"
)

func TestRowsToRecords(t *testing.T) {
	header := []string{"Queue ID", "Project Name", "", "Capacity MW"}
	rows := [][]string{
		{"AG1-101", "Project Alpha", "ignored", "250"},
		{"AG1-102", "Project Beta"}, // short row
		{"", "", "", ""},            // blank row dropped
		{"AG1-103", "Project Gamma", "x", "120", "extra cell ignored"},
	}

	records := rowsToRecords(header, rows)
	require.Len(t, records, 3)

	assert.Equal(t, "Project Alpha", records[0]["Project Name"])
	assert.Equal(t, "250", records[0]["Capacity MW"])
	_, hasBlankKey := records[0][""]
	assert.False(t, hasBlankKey)

	assert.Equal(t, "AG1-102", records[1]["Queue ID"])
	_, ok := records[1]["Capacity MW"]
	assert.False(t, ok)

	assert.Equal(t, "120", records[2]["Capacity MW"])
}

func TestDropWithdrawn(t *testing.T) {
	records := []model.RawRecord{
		{"Project Name": "Alpha", "Status": "Active"},
		{"Project Name": "Beta", "Status": "Withdrawn"},
		{"Project Name": "Gamma", "Queue Status": "CANCELLED"},
		{"Project Name": "Delta"},
	}

	kept := dropWithdrawn(records)
	require.Len(t, kept, 2)
	assert.Equal(t, "Alpha", kept[0]["Project Name"])
	assert.Equal(t, "Delta", kept[1]["Project Name"])
}

func TestCadenceNextDue(t *testing.T) {
	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	// EveryRun is immediately due again; Monthly rolls to the first of
	// the next month.
	assert.Equal(t, now, EveryRun.NextDue(now))
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), Monthly.NextDue(now))
}

func TestRegistryOrderAndSelect(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"pjm", "miso", "nyiso", "ercot", "lbnl"}, r.AllNames())

	all, err := r.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	subset, err := r.Select([]string{"ercot", "pjm"})
	require.NoError(t, err)
	require.Len(t, subset, 2)
	assert.Equal(t, "ercot", subset[0].Name())
	assert.Equal(t, "pjm", subset[1].Name())

	_, err = r.Select([]string{"caiso"})
	assert.Error(t, err)
}

func TestLBNLFiltersCoveredRegions(t *testing.T) {
	records := []model.RawRecord{
		{"Project Name": "Alpha", "Region": "PJM"},
		{"Project Name": "Beta", "Region": "CAISO"},
		{"Project Name": "Gamma", "Balancing Authority": "MISO Central"},
		{"Project Name": "Delta", "Region": "Southeast"},
		{"Project Name": "Epsilon"},
	}

	kept := filterCoveredRegions(records)
	require.Len(t, kept, 3)
	assert.Equal(t, "Beta", kept[0]["Project Name"])
	assert.Equal(t, "Delta", kept[1]["Project Name"])
	assert.Equal(t, "Epsilon", kept[2]["Project Name"])
}
