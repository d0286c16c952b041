package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/majnioui/calc/internal/assistant"
	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/metrics"
	"github.com/majnioui/calc/internal/models"
	"github.com/majnioui/calc/internal/places"
)

const missingGeoParams = "Missing required parameters: latitude, longitude"

type locationBody struct {
	Latitude  number `json:"latitude"`
	Longitude number `json:"longitude"`
}

type branchResponse struct {
	Branch  assistant.Branch `json:"branch"`
	Message string           `json:"message"`
	MapsURL string           `json:"maps_url"`
}

func (s *Server) findBranches(c *gin.Context) {
	var body locationBody
	if err := bindBody(c, &body); err != nil {
		metrics.BranchLookups.WithLabelValues("invalid").Inc()
		abortWith(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !body.Latitude.set || !body.Longitude.set {
		metrics.BranchLookups.WithLabelValues("invalid").Inc()
		abortWith(c, http.StatusBadRequest, missingGeoParams)
		return
	}

	from := models.GeoPoint{Lat: body.Latitude.value, Lon: body.Longitude.value}
	if err := from.Validate(); err != nil {
		metrics.BranchLookups.WithLabelValues("invalid").Inc()
		s.fail(c, err, "")
		return
	}

	keyword := s.cfg.Places.Keyword
	candidates, err := s.finder.Nearby(c.Request.Context(), from, s.cfg.Places.RadiusMeters, keyword)
	if err != nil {
		metrics.BranchLookups.WithLabelValues("upstream_error").Inc()
		s.logger.Error("places lookup failed", map[string]interface{}{
			"requestId": c.GetString("requestId"),
			"error":     err,
		})
		s.fail(c, fmt.Errorf("%w: %v", places.ErrUpstream, err), "An error occurred while finding the nearest branch")
		return
	}
	// Checked here so "nothing nearby" gets its own message.
	if len(candidates) == 0 {
		metrics.BranchLookups.WithLabelValues("not_found").Inc()
		abortWith(c, http.StatusNotFound, fmt.Sprintf("No %s branches found nearby", keyword))
		return
	}

	nearest, err := calculator.Nearest(from, candidates)
	if err != nil {
		s.fail(c, err, "An error occurred while finding the nearest branch")
		return
	}
	metrics.BranchLookups.WithLabelValues("ok").Inc()
	metrics.BranchDistance.Observe(nearest.DistanceKm)

	branch := assistant.Branch{
		Name:     nearest.Candidate.Name,
		Address:  nearest.Candidate.Address,
		Lat:      nearest.Candidate.Loc.Lat,
		Lng:      nearest.Candidate.Loc.Lon,
		Distance: nearest.DistanceKm,
		PlaceID:  nearest.Candidate.ID,
		MapsURL:  places.MapsURL(nearest.Candidate.ID),
	}
	s.updateContext(c, func(vars *assistant.ContextVars) {
		vars.Branch = &branch
	})

	c.JSON(http.StatusOK, branchResponse{
		Branch: branch,
		Message: fmt.Sprintf("The nearest %s branch is %s at %s, located %s km away.",
			keyword, branch.Name, branch.Address, calculator.FormatAmount(branch.Distance)),
		MapsURL: branch.MapsURL,
	})
}

type placeLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type placeResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location placeLocation `json:"location"`
	} `json:"geometry"`
}

type requestInfo struct {
	ReceivedParams map[string]string `json:"receivedParams"`
	Endpoint       string            `json:"endpoint"`
	RequiredParams []string          `json:"requiredParams"`
	MissingParams  []string          `json:"missingParams"`
}

// placesNearby proxies the places lookup in the upstream response shape.
func (s *Server) placesNearby(c *gin.Context) {
	info := requestInfo{
		ReceivedParams: map[string]string{},
		Endpoint:       "/api/places/nearby",
		RequiredParams: []string{"lat", "lng"},
		MissingParams:  []string{},
	}
	for k := range c.Request.URL.Query() {
		info.ReceivedParams[k] = c.Query(k)
	}
	for _, p := range info.RequiredParams {
		if strings.TrimSpace(c.Query(p)) == "" {
			info.MissingParams = append(info.MissingParams, p)
		}
	}
	if len(info.MissingParams) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": "INVALID_REQUEST", "requestInfo": info, "results": []placeResult{}})
		return
	}

	var lat, lng, radius number
	radius.value = s.cfg.Places.RadiusMeters
	for _, p := range []struct {
		name string
		dst  *number
	}{{"lat", &lat}, {"lng", &lng}, {"radius", &radius}} {
		if err := p.dst.parse(c.Query(p.name)); err != nil {
			abortWith(c, http.StatusBadRequest, fmt.Sprintf("%s: %v", p.name, err))
			return
		}
	}
	if radius.value <= 0 {
		abortWith(c, http.StatusBadRequest, "radius must be positive")
		return
	}
	from := models.GeoPoint{Lat: lat.value, Lon: lng.value}
	if err := from.Validate(); err != nil {
		s.fail(c, err, "")
		return
	}

	candidates, err := s.finder.Nearby(c.Request.Context(), from, radius.value, c.DefaultQuery("keyword", s.cfg.Places.Keyword))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", places.ErrUpstream, err), "An error occurred while querying places")
		return
	}

	results := make([]placeResult, 0, len(candidates))
	for _, cand := range candidates {
		var r placeResult
		r.PlaceID = cand.ID
		r.Name = cand.Name
		r.Vicinity = cand.Address
		r.Geometry.Location = placeLocation{Lat: cand.Loc.Lat, Lng: cand.Loc.Lon}
		results = append(results, r)
	}
	status := "OK"
	if len(results) == 0 {
		status = "ZERO_RESULTS"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "requestInfo": info, "results": results})
}
