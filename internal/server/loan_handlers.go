package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/majnioui/calc/internal/assistant"
	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/excel"
	"github.com/majnioui/calc/internal/metrics"
	"github.com/majnioui/calc/internal/models"
)

const (
	missingLoanParams = "Missing required parameters: loan_amount, loan_percentage, loan_term"
	// Upper bound on rows generated for a schedule.
	maxScheduleMonths = 1200
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type loanBody struct {
	LoanAmount     number `json:"loan_amount"`
	LoanPercentage number `json:"loan_percentage"`
	LoanTerm       number `json:"loan_term"`
}

func (b loanBody) request() (models.LoanRequest, error) {
	months, err := wholeMonths(b.LoanTerm)
	if err != nil {
		return models.LoanRequest{}, err
	}
	return models.LoanRequest{
		Principal:         b.LoanAmount.value,
		AnnualRatePercent: b.LoanPercentage.value,
		TermMonths:        months,
	}, nil
}

func (b loanBody) complete() bool {
	return b.LoanAmount.set && b.LoanPercentage.set && b.LoanTerm.set
}

func (s *Server) calculatePayment(c *gin.Context) {
	var body loanBody
	if err := bindBody(c, &body); err != nil {
		metrics.LoanQuotes.WithLabelValues("invalid").Inc()
		abortWith(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !body.complete() {
		metrics.LoanQuotes.WithLabelValues("invalid").Inc()
		abortWith(c, http.StatusBadRequest, missingLoanParams)
		return
	}

	req, err := body.request()
	if err == nil {
		var q models.LoanQuote
		if q, err = calculator.Quote(req); err == nil {
			view := calculator.FormatQuote(q)
			metrics.LoanQuotes.WithLabelValues("ok").Inc()
			s.rememberQuote(c, req, view)
			c.JSON(http.StatusOK, view)
			return
		}
	}

	metrics.LoanQuotes.WithLabelValues("invalid").Inc()
	s.fail(c, err, "An error occurred while calculating the payment")
}

type scheduleRow struct {
	Period    int    `json:"period"`
	Payment   string `json:"payment"`
	Interest  string `json:"interest"`
	Principal string `json:"principal"`
	Balance   string `json:"balance"`
}

func (s *Server) loanSchedule(c *gin.Context) {
	var body loanBody
	for _, p := range []struct {
		name string
		dst  *number
	}{
		{"loan_amount", &body.LoanAmount},
		{"loan_percentage", &body.LoanPercentage},
		{"loan_term", &body.LoanTerm},
	} {
		if err := p.dst.parse(c.Query(p.name)); err != nil {
			abortWith(c, http.StatusBadRequest, fmt.Sprintf("%s: %v", p.name, err))
			return
		}
	}
	if !body.complete() {
		abortWith(c, http.StatusBadRequest, missingLoanParams)
		return
	}

	req, err := body.request()
	if err == nil && req.TermMonths > maxScheduleMonths {
		err = fmt.Errorf("%w: loan_term above %d months", calculator.ErrInvalidInput, maxScheduleMonths)
	}
	var q models.LoanQuote
	if err == nil {
		q, err = calculator.Quote(req)
	}
	var rows []models.Installment
	if err == nil {
		rows, err = calculator.Schedule(req)
	}
	if err != nil {
		s.fail(c, err, "An error occurred while building the schedule")
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "xlsx":
		var buf bytes.Buffer
		if err := excel.WriteSchedule(&buf, req, q, rows); err != nil {
			s.fail(c, err, "An error occurred while building the schedule")
			return
		}
		c.Header("Content-Disposition", `attachment; filename="amortization.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	case "json":
		out := make([]scheduleRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, scheduleRow{
				Period:    r.Period,
				Payment:   calculator.FormatAmount(r.Payment),
				Interest:  calculator.FormatAmount(r.Interest),
				Principal: calculator.FormatAmount(r.Principal),
				Balance:   calculator.FormatAmount(r.Balance),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"quote":    calculator.FormatQuote(q),
			"schedule": out,
		})
	default:
		abortWith(c, http.StatusBadRequest, "format must be json or xlsx")
	}
}

func (s *Server) rememberQuote(c *gin.Context, req models.LoanRequest, view models.QuoteView) {
	s.updateContext(c, func(vars *assistant.ContextVars) {
		amount := req.Principal
		vars.LoanAmount = &amount
		vars.Quote = &view
	})
}

func (s *Server) updateContext(c *gin.Context, mutate func(*assistant.ContextVars)) {
	session := sessions.Default(c)
	raw, _ := session.Get(contextKey).(string)
	vars := assistant.DecodeContext(raw)
	mutate(&vars)
	session.Set(contextKey, vars.Encode())
	if err := session.Save(); err != nil {
		s.logger.Warn("saving session failed", map[string]interface{}{"error": err})
	}
}
