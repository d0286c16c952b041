// Package places finds candidate branches around a point.
package places

import (
	"context"
	"errors"

	"github.com/majnioui/calc/internal/models"
)

// ErrUpstream wraps failures of the external places service.
var ErrUpstream = errors.New("places upstream failure")

// Finder returns zero or more candidates within radiusMeters of loc whose
// name matches keyword. An empty result is not an error.
type Finder interface {
	Nearby(ctx context.Context, loc models.GeoPoint, radiusMeters float64, keyword string) ([]models.Candidate, error)
}
