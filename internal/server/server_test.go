package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/majnioui/calc/internal/config"
	"github.com/majnioui/calc/internal/jobs"
	"github.com/majnioui/calc/internal/logger"
	"github.com/majnioui/calc/internal/models"
)

type stubFinder struct {
	out     []models.Candidate
	err     error
	calls   int
	gotLoc  models.GeoPoint
	gotRad  float64
	keyword string
}

func (f *stubFinder) Nearby(ctx context.Context, loc models.GeoPoint, radiusMeters float64, keyword string) ([]models.Candidate, error) {
	f.calls++
	f.gotLoc, f.gotRad, f.keyword = loc, radiusMeters, keyword
	return f.out, f.err
}

type harness struct {
	srv    *Server
	router *gin.Engine
	jobs   *jobs.Manager
	finder *stubFinder
}

func newHarness(t *testing.T, tweak func(*config.Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Environment = "test"
	cfg.Server.Port = "3000"
	cfg.Server.SessionSecret = "test-secret"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Places.Provider = "directory"
	cfg.Places.Keyword = "Wafasalaf"
	cfg.Places.RadiusMeters = 5000
	cfg.Assistant.IntegrationID = "integration"
	cfg.Assistant.Region = "au-syd"
	cfg.Batch.UploadDir = t.TempDir()
	cfg.Batch.OutputDir = t.TempDir()
	if tweak != nil {
		tweak(cfg)
	}

	finder := &stubFinder{}
	manager := jobs.NewManager(cfg.Batch.OutputDir, time.Hour, logger.NewNoOpLogger())
	srv := New(cfg, finder, manager, logger.NewTestLogger(t))
	t.Cleanup(srv.Close)

	return &harness{srv: srv, router: srv.Router(), jobs: manager, finder: finder}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) postJSON(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	return h.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCalculatePayment(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postJSON("/calculate-payment", `{"loan_amount":100000,"loan_percentage":7,"loan_term":60}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "1980.12", body["monthly_payment"])
	assert.Equal(t, "118807.19", body["total_payment"])
	assert.Equal(t, "18807.19", body["total_interest"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCalculatePayment_StringsAndZeroRate(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postJSON("/api/calculate-payment", `{"loan_amount":"50000","loan_percentage":"0","loan_term":"24"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "2083.33", body["monthly_payment"])
	assert.Equal(t, "0.00", body["total_interest"])
}

func TestCalculatePayment_Rejects(t *testing.T) {
	h := newHarness(t, nil)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing term", `{"loan_amount":1000,"loan_percentage":5}`, missingLoanParams},
		{"empty body", ``, missingLoanParams},
		{"blank string", `{"loan_amount":"","loan_percentage":5,"loan_term":12}`, missingLoanParams},
		{"negative principal", `{"loan_amount":-1,"loan_percentage":5,"loan_term":12}`, "principal"},
		{"negative rate", `{"loan_amount":1000,"loan_percentage":-5,"loan_term":12}`, "rate"},
		{"zero term", `{"loan_amount":1000,"loan_percentage":5,"loan_term":0}`, "term"},
		{"fractional term", `{"loan_amount":1000,"loan_percentage":5,"loan_term":12.5}`, "whole number"},
		{"not a number", `{"loan_amount":"abc","loan_percentage":5,"loan_term":12}`, "invalid request body"},
		{"malformed", `{invalid-json}`, "invalid request body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.postJSON("/calculate-payment", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], tc.want)
		})
	}
}

func TestLoanSchedule(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/loan/schedule?loan_amount=1200&loan_percentage=0&loan_term=12", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Quote    models.QuoteView `json:"quote"`
		Schedule []scheduleRow    `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "100.00", body.Quote.MonthlyPayment)
	require.Len(t, body.Schedule, 12)
	assert.Equal(t, "0.00", body.Schedule[11].Balance)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/loan/schedule?loan_amount=1200&loan_percentage=5&loan_term=12&format=xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	assert.Len(t, rows, 13)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/loan/schedule?loan_amount=1200&loan_percentage=5&loan_term=5000", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/loan/schedule?loan_amount=1200&loan_percentage=5&loan_term=12&format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/loan/schedule?loan_amount=1200", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFindBranches_PicksNearest(t *testing.T) {
	h := newHarness(t, nil)
	h.finder.out = []models.Candidate{
		{ID: "pB", Name: "B", Address: "far away", Loc: models.GeoPoint{Lat: 33.6000, Lon: -7.7000}},
		{ID: "pA", Name: "A", Address: "Bd Zerktouni", Loc: models.GeoPoint{Lat: 33.5900, Lon: -7.6330}},
	}

	w := h.postJSON("/api/find-branches", `{"latitude":33.5899,"longitude":-7.6326}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body branchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "A", body.Branch.Name)
	assert.Equal(t, "pA", body.Branch.PlaceID)
	assert.InDelta(t, 0.0387, body.Branch.Distance, 0.001)
	assert.Equal(t, "https://www.google.com/maps/place/?q=place_id:pA", body.MapsURL)
	assert.Equal(t, "The nearest Wafasalaf branch is A at Bd Zerktouni, located 0.04 km away.", body.Message)

	assert.Equal(t, models.GeoPoint{Lat: 33.5899, Lon: -7.6326}, h.finder.gotLoc)
	assert.Equal(t, 5000.0, h.finder.gotRad)
	assert.Equal(t, "Wafasalaf", h.finder.keyword)
}

func TestFindBranches_Errors(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postJSON("/find-branches", `{"latitude":33.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, missingGeoParams, decode(t, w)["error"])

	w = h.postJSON("/find-branches", `{"latitude":133.5,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, h.finder.calls)

	h.finder.out = nil
	w = h.postJSON("/find-branches", `{"latitude":"33.5","longitude":"-7.6"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No Wafasalaf branches found nearby", decode(t, w)["error"])

	h.finder.err = errors.New("connection reset")
	w = h.postJSON("/find-branches", `{"latitude":33.5,"longitude":-7.6}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPlacesNearby(t *testing.T) {
	h := newHarness(t, nil)
	h.finder.out = []models.Candidate{
		{ID: "p1", Name: "CIH Bank Central", Address: "Casablanca", Loc: models.GeoPoint{Lat: 33.5895, Lon: -7.6326}},
	}

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/places/nearby?lat=33.5&lng=-7.6&radius=1500&keyword=CIH", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "OK", body["status"])
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "CIH Bank Central", first["name"])
	assert.Equal(t, 1500.0, h.finder.gotRad)
	assert.Equal(t, "CIH", h.finder.keyword)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/places/nearby?lat=33.5", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := decode(t, w)["requestInfo"].(map[string]interface{})
	assert.Equal(t, []interface{}{"lng"}, info["missingParams"])

	calls := h.finder.calls
	w = h.do(httptest.NewRequest(http.MethodGet, "/api/places/nearby?lat=%20&lng=5", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	info = decode(t, w)["requestInfo"].(map[string]interface{})
	assert.Equal(t, []interface{}{"lat"}, info["missingParams"])
	assert.Equal(t, calls, h.finder.calls)
}

func TestAssistantFlow(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/assistant/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "integration", decode(t, w)["integrationID"])

	msg := `{"output":{"generic":[{"text":"avec la valeur 42000","user_defined":{"user_defined_type":"fill_loan_amount","amount":"$step_001"}}]}}`
	w = h.postJSON("/api/assistant/message", msg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = h.postJSON("/calculate-payment", `{"loan_amount":42000,"loan_percentage":0,"loan_term":12}`, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	if updated := w.Result().Cookies(); len(updated) > 0 {
		cookies = updated
	}

	req := httptest.NewRequest(http.MethodGet, "/api/assistant/context", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = h.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	ctx := decode(t, w)
	assert.Equal(t, 42000.0, ctx["loan_amount"])
	assert.Equal(t, "3500.00", ctx["quote"].(map[string]interface{})["monthly_payment"])

	w = h.postJSON("/api/assistant/message", `{"output":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiagnostics(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["environment"])
	assert.Contains(t, body["endpoints"], "/api/find-branches")

	w = h.do(httptest.NewRequest(http.MethodGet, "/server-info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["go"], "go")

	w = h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/calculate-payment", nil)
	req.Header.Set("Origin", "https://bank.example")
	w := h.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 2
		cfg.Server.RateWindow = 60000
	})

	body := `{"loan_amount":1000,"loan_percentage":5,"loan_term":12}`
	assert.Equal(t, http.StatusOK, h.postJSON("/calculate-payment", body).Code)
	assert.Equal(t, http.StatusOK, h.postJSON("/api/calculate-payment", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.postJSON("/calculate-payment", body).Code)

	assert.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestBatchFlow(t *testing.T) {
	h := newHarness(t, nil)

	book := excelize.NewFile()
	for name, rows := range map[string][][]interface{}{
		jobs.RequesterSheet: {{"id", "name", "lat", "lng"}, {"r1", "Client", 33.5899, -7.6326}},
		jobs.BranchSheet:    {{"id", "name", "lat", "lng"}, {"b1", "Far", 34.02, -6.84}, {"b2", "Near", 33.59, -7.633}},
	} {
		_, err := book.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			addr, _ := excelize.CoordinatesToCellName(1, i+1)
			r := row
			require.NoError(t, book.SetSheetRow(name, addr, &r))
		}
	}
	var xlsx bytes.Buffer
	_, err := book.WriteTo(&xlsx)
	require.NoError(t, err)
	require.NoError(t, book.Close())

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("input_file", "customers.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/batch", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id := decode(t, w)["job_id"].(string)

	h.jobs.Wait()

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/batch/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var snap jobs.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, jobs.StatusDone, snap.Status, snap.Logs)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/batch/"+id+"/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	out, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer out.Close()
	rows, err := out.GetRows(jobs.ResultSheet)
	require.NoError(t, err)
	assert.Equal(t, "b2", rows[1][4])

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/batch/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, id+"_nearest.xlsx", snap.Result.Filename)
}

func TestBatch_RejectsNonWorkbook(t *testing.T) {
	h := newHarness(t, nil)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("input_file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/batch", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/batch", nil)
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)
}
