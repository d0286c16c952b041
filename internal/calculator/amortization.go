package calculator

import (
	"fmt"
	"math"

	"github.com/majnioui/calc/internal/models"
)

func validateLoan(req models.LoanRequest) error {
	if !(req.Principal > 0) || math.IsInf(req.Principal, 0) {
		return fmt.Errorf("%w: principal must be positive, got %v", ErrInvalidInput, req.Principal)
	}
	if !(req.AnnualRatePercent >= 0) || math.IsInf(req.AnnualRatePercent, 0) {
		return fmt.Errorf("%w: annual rate must not be negative, got %v", ErrInvalidInput, req.AnnualRatePercent)
	}
	if req.TermMonths < 1 {
		return fmt.Errorf("%w: term must be at least one month, got %d", ErrInvalidInput, req.TermMonths)
	}
	return nil
}

// MonthlyRate converts an annual percentage into the periodic rate.
func MonthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / 12 / 100
}

func monthlyPayment(principal, r float64, n int) float64 {
	if r == 0 {
		return principal / float64(n)
	}
	// growth-1 through Expm1 keeps precision when r is tiny.
	exponent := float64(n) * math.Log1p(r)
	growthMinusOne := math.Expm1(exponent)
	if growthMinusOne == 0 {
		return principal / float64(n)
	}
	growth := math.Exp(exponent)
	if math.IsInf(growth, 1) {
		return principal * r
	}
	return principal * r * growth / growthMinusOne
}

// Quote applies the fixed-rate annuity formula. A zero rate yields
// principal/termMonths instead of dividing by zero.
func Quote(req models.LoanRequest) (models.LoanQuote, error) {
	if err := validateLoan(req); err != nil {
		return models.LoanQuote{}, err
	}

	monthly := monthlyPayment(req.Principal, MonthlyRate(req.AnnualRatePercent), req.TermMonths)
	total := monthly * float64(req.TermMonths)
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return models.LoanQuote{}, fmt.Errorf("%w: payment overflows for principal %v", ErrInvalidInput, req.Principal)
	}

	return models.LoanQuote{
		MonthlyPayment: monthly,
		TotalPayment:   total,
		TotalInterest:  total - req.Principal,
	}, nil
}

// Schedule expands a quote into one installment per month. The last
// installment absorbs rounding drift so the closing balance is zero.
func Schedule(req models.LoanRequest) ([]models.Installment, error) {
	q, err := Quote(req)
	if err != nil {
		return nil, err
	}

	r := MonthlyRate(req.AnnualRatePercent)
	balance := req.Principal
	rows := make([]models.Installment, 0, req.TermMonths)

	for period := 1; period <= req.TermMonths; period++ {
		interest := balance * r
		principal := q.MonthlyPayment - interest
		if period == req.TermMonths {
			principal = balance
		}
		balance -= principal
		if balance < 0 || period == req.TermMonths {
			balance = 0
		}

		rows = append(rows, models.Installment{
			Period:    period,
			Payment:   principal + interest,
			Interest:  interest,
			Principal: principal,
			Balance:   balance,
		})
	}
	return rows, nil
}
