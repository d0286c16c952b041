package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/majnioui/calc/internal/models"
)

// FormatAmount renders v with exactly two decimals.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Round2 rounds v half away from zero to two decimals.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatQuote is the presentation boundary for a LoanQuote.
func FormatQuote(q models.LoanQuote) models.QuoteView {
	return models.QuoteView{
		MonthlyPayment: FormatAmount(q.MonthlyPayment),
		TotalPayment:   FormatAmount(q.TotalPayment),
		TotalInterest:  FormatAmount(q.TotalInterest),
	}
}
