package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/models"
)

// Recognised header names, compared case-insensitively.
var (
	idHeaders      = []string{"id", "place_id", "code", "no"}
	nameHeaders    = []string{"name", "branch", "nom"}
	addressHeaders = []string{"address", "vicinity", "adresse"}
	latHeaders     = []string{"lat", "latitude"}
	lonHeaders     = []string{"lng", "lon", "long", "longitude"}
)

func parseCoord(val string) (float64, error) {
	// Some locales export decimal commas.
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseFloat(val, 64)
}

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

func OpenReader(r io.Reader) (*excelize.File, error) {
	return excelize.OpenReader(r)
}

type columns struct {
	id, name, address, lat, lon int
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func resolveColumns(header []string) (columns, error) {
	c := columns{
		id:      findColumn(header, idHeaders),
		name:    findColumn(header, nameHeaders),
		address: findColumn(header, addressHeaders),
		lat:     findColumn(header, latHeaders),
		lon:     findColumn(header, lonHeaders),
	}
	if c.lat < 0 || c.lon < 0 {
		return c, fmt.Errorf("sheet needs latitude and longitude columns, header was %v", header)
	}
	return c, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ReadSheet reads locations from a sheet whose first row is a header.
// Rows with missing or out-of-range coordinates are skipped.
func ReadSheet(f *excelize.File, sheetName string) ([]models.Candidate, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
	}

	var out []models.Candidate
	for i, row := range rows {
		if i == 0 {
			continue
		}

		lat, err1 := parseCoord(cell(row, cols.lat))
		lon, err2 := parseCoord(cell(row, cols.lon))
		if err1 != nil || err2 != nil {
			continue
		}
		loc := models.GeoPoint{Lat: lat, Lon: lon}
		if loc.Validate() != nil {
			continue
		}

		id := cell(row, cols.id)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		out = append(out, models.Candidate{
			ID:      id,
			Name:    cell(row, cols.name),
			Address: cell(row, cols.address),
			Loc:     loc,
		})
	}
	return out, nil
}

// WriteResult writes batch assignments to a new workbook at path.
func WriteResult(path string, data []models.ResultRow, sheetName string) error {
	f := excelize.NewFile()
	defer f.Close()

	headers := []interface{}{
		"Requester ID", "Requester Name", "Requester Lat", "Requester Lon",
		"Branch ID", "Branch Name", "Branch Lat", "Branch Lon",
		"Distance (km)",
	}

	rows := make([][]interface{}, 0, len(data))
	for _, r := range data {
		rows = append(rows, []interface{}{
			r.RequesterID, r.RequesterName, r.RequesterLat, r.RequesterLon,
			r.BranchID, r.BranchName, r.BranchLat, r.BranchLon,
			r.DistanceKm,
		})
	}

	if err := streamSheet(f, sheetName, headers, rows); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// WriteSchedule writes a summary and the installment table to w.
func WriteSchedule(w io.Writer, req models.LoanRequest, q models.LoanQuote, schedule []models.Installment) error {
	f := excelize.NewFile()
	defer f.Close()

	headers := []interface{}{"Period", "Payment", "Interest", "Principal", "Balance"}
	rows := make([][]interface{}, 0, len(schedule))
	for _, in := range schedule {
		rows = append(rows, []interface{}{
			in.Period,
			calculator.Round2(in.Payment),
			calculator.Round2(in.Interest),
			calculator.Round2(in.Principal),
			calculator.Round2(in.Balance),
		})
	}
	if err := streamSheet(f, "Schedule", headers, rows); err != nil {
		return err
	}

	summary := "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return err
	}
	view := calculator.FormatQuote(q)
	pairs := [][]interface{}{
		{"Principal", req.Principal},
		{"Annual rate (%)", req.AnnualRatePercent},
		{"Term (months)", req.TermMonths},
		{"Monthly payment", view.MonthlyPayment},
		{"Total payment", view.TotalPayment},
		{"Total interest", view.TotalInterest},
	}
	for i, p := range pairs {
		addr, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, addr, &p); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// streamSheet creates sheetName, fills it with a header and rows, makes it
// active and drops the default sheet.
func streamSheet(f *excelize.File, sheetName string, headers []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}
	for i, row := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cellName, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
	}
	index, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	return nil
}
