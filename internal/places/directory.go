package places

import (
	"context"
	"fmt"
	"strings"

	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/excel"
	"github.com/majnioui/calc/internal/models"
)

// Directory is an offline Finder over a fixed branch list.
type Directory struct {
	branches []models.Candidate
}

func NewDirectory(branches []models.Candidate) *Directory {
	cp := make([]models.Candidate, len(branches))
	copy(cp, branches)
	return &Directory{branches: cp}
}

// LoadDirectory reads the branch list from a workbook sheet.
func LoadDirectory(path, sheet string) (*Directory, error) {
	f, err := excel.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open branch directory: %w", err)
	}
	defer f.Close()

	branches, err := excel.ReadSheet(f, sheet)
	if err != nil {
		return nil, fmt.Errorf("read branch directory: %w", err)
	}
	return NewDirectory(branches), nil
}

func (d *Directory) Len() int { return len(d.branches) }

// Nearby keeps directory order, mirroring an upstream result list.
func (d *Directory) Nearby(ctx context.Context, loc models.GeoPoint, radiusMeters float64, keyword string) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	radiusKm := radiusMeters / 1000
	kw := strings.ToLower(strings.TrimSpace(keyword))

	out := []models.Candidate{}
	for _, b := range d.branches {
		if kw != "" && !strings.Contains(strings.ToLower(b.Name), kw) {
			continue
		}
		if calculator.Haversine(loc, b.Loc) > radiusKm {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
