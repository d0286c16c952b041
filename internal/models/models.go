package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks arguments outside the domain of a computation.
var ErrInvalidInput = errors.New("invalid input")

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Validate reports coordinates outside [-90,90] x [-180,180].
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, p.Lon)
	}
	return nil
}

// Candidate is one location returned by a places lookup.
type Candidate struct {
	ID      string
	Name    string
	Address string
	Loc     GeoPoint
}

type NearestResult struct {
	Candidate  Candidate
	DistanceKm float64
}

type LoanRequest struct {
	Principal         float64
	AnnualRatePercent float64
	TermMonths        int
}

// LoanQuote keeps full precision; rounding happens in QuoteView.
type LoanQuote struct {
	MonthlyPayment float64
	TotalPayment   float64
	TotalInterest  float64
}

type QuoteView struct {
	MonthlyPayment string `json:"monthly_payment"`
	TotalPayment   string `json:"total_payment"`
	TotalInterest  string `json:"total_interest"`
}

type Installment struct {
	Period    int     `json:"period"`
	Payment   float64 `json:"payment"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
	Balance   float64 `json:"balance"`
}

// ResultRow is one line of a batch nearest-branch assignment.
type ResultRow struct {
	RequesterID   string
	RequesterName string
	RequesterLat  float64
	RequesterLon  float64
	BranchID      string
	BranchName    string
	BranchLat     float64
	BranchLon     float64
	DistanceKm    float64
}
