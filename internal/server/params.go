package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/places"
)

// number accepts a JSON number or a numeric string. Null, absent and
// blank values leave it unset.
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return n.parse(s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	n.value, n.set = f, true
	return nil
}

func (n *number) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%q is not a number", s)
	}
	n.value, n.set = f, true
	return nil
}

// bindBody decodes the JSON body into dst; an empty body decodes as {}.
func bindBody(c *gin.Context, dst interface{}) error {
	raw, err := c.GetRawData()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	return json.Unmarshal(raw, dst)
}

func wholeMonths(n number) (int, error) {
	if n.value != math.Trunc(n.value) || n.value > math.MaxInt32 || n.value < math.MinInt32 {
		return 0, fmt.Errorf("%w: loan_term must be a whole number of months", calculator.ErrInvalidInput)
	}
	return int(n.value), nil
}

type errorBody struct {
	Error string `json:"error"`
}

func abortWith(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: msg})
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, calculator.ErrInvalidInput):
		abortWith(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, calculator.ErrEmptyCandidateSet):
		abortWith(c, http.StatusNotFound, err.Error())
	case errors.Is(err, places.ErrUpstream):
		abortWith(c, http.StatusBadGateway, fallback)
	default:
		abortWith(c, http.StatusInternalServerError, fallback)
	}
}
