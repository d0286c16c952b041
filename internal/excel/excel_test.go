package excel

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/models"
)

func writeBook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for i, row := range rows {
		addr, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, addr, &r))
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadSheet(t *testing.T) {
	path := writeBook(t, "Branches", [][]interface{}{
		{"ID", "Name", "Address", "Latitude", "Longitude"},
		{"b1", "Maarif", "Bd Zerktouni", "33,5900", "-7.6330"},
		{"", "No id", "", 33.6, -7.7},
		{"b3", "Broken", "", "n/a", "-7.7"},
		{"b4", "Off the map", "", 95, 10},
		{"b5", "Short row"},
	})

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadSheet(f, "Branches")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "Maarif", got[0].Name)
	assert.Equal(t, "Bd Zerktouni", got[0].Address)
	assert.Equal(t, models.GeoPoint{Lat: 33.59, Lon: -7.633}, got[0].Loc)

	assert.Equal(t, "3", got[1].ID)
	assert.Equal(t, 33.6, got[1].Loc.Lat)
}

func TestReadSheet_MissingCoordinateColumns(t *testing.T) {
	path := writeBook(t, "Branches", [][]interface{}{{"ID", "Name"}, {"1", "x"}})

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = ReadSheet(f, "Branches")
	assert.ErrorContains(t, err, "latitude")

	_, err = ReadSheet(f, "Nope")
	assert.Error(t, err)
}

func TestWriteResult_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	rows := []models.ResultRow{
		{RequesterID: "r1", RequesterName: "Client", RequesterLat: 1, RequesterLon: 2,
			BranchID: "b1", BranchName: "Branch", BranchLat: 3, BranchLon: 4, DistanceKm: 12.5},
	}
	require.NoError(t, WriteResult(path, rows, "Results"))

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Results"}, f.GetSheetList())
	got, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Distance (km)", got[0][8])
	assert.Equal(t, "b1", got[1][4])
	assert.Equal(t, "12.5", got[1][8])
}

func TestWriteSchedule(t *testing.T) {
	req := models.LoanRequest{Principal: 1200, AnnualRatePercent: 0, TermMonths: 12}
	q, err := calculator.Quote(req)
	require.NoError(t, err)
	schedule, err := calculator.Schedule(req)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSchedule(&buf, req, q, schedule))

	f, err := OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Schedule", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.Equal(t, []string{"1", "100", "0", "100", "1100"}, rows[1])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Monthly payment", "100.00"}, summary[3])
}
