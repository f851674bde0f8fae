package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyTotals(t *testing.T) {
	loc := testLocations()[2] // Liverpool
	records := []IncidentRecord{
		{Category: "drugs", Period: "2023-02"},
		{Category: "burglary", Period: "2023-01"},
		{Category: "drugs", Period: "2023-02"},
	}

	rows := MonthlyTotals(loc, records, []Period{"2023-01", "2023-02", "2023-03"}, DefaultRatePolicy())

	require.Len(t, rows, 3)
	assert.Equal(t, MonthlyTotal{Location: testLiverpool, Period: "2023-01", Total: 1, Fractional: 0}, rows[0])
	assert.Equal(t, 2, rows[1].Total)
	assert.Equal(t, Period("2023-03"), rows[2].Period)
	assert.Equal(t, 0, rows[2].Total, "expected month without records is zeroed")
}

func TestMonthlyCategoryTotals(t *testing.T) {
	loc := testLocations()[0]
	records := []IncidentRecord{
		{Category: "drugs", Period: "2023-02"},
		{Category: "burglary", Period: "2023-02"},
		{Category: "drugs", Period: "2023-02"},
		{Category: "robbery", Period: "2023-01"},
	}

	rows := MonthlyCategoryTotals(loc, records, DefaultRatePolicy())

	require.Len(t, rows, 3)
	assert.Equal(t, "robbery", rows[0].Category)
	assert.Equal(t, Period("2023-01"), rows[0].Period)
	assert.Equal(t, "burglary", rows[1].Category)
	assert.Equal(t, "drugs", rows[2].Category)
	assert.Equal(t, 2, rows[2].Total)
	assert.Equal(t, testLondon, rows[2].Location)
}
