package calculator

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/majnioui/calc/internal/models"
)

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

// Nearest scans candidates once and returns the closest to from.
// Only a strictly smaller distance replaces the current best, so ties keep
// the earliest candidate.
func Nearest(from models.GeoPoint, candidates []models.Candidate) (models.NearestResult, error) {
	if len(candidates) == 0 {
		return models.NearestResult{}, ErrEmptyCandidateSet
	}

	nearestIdx := 0
	minDist := Haversine(from, candidates[0].Loc)
	for i := 1; i < len(candidates); i++ {
		d := Haversine(from, candidates[i].Loc)
		if d < minDist {
			minDist = d
			nearestIdx = i
		}
	}

	return models.NearestResult{
		Candidate:  candidates[nearestIdx],
		DistanceKm: minDist,
	}, nil
}

// ComputeNearest assigns the nearest branch to every requester, splitting the
// requesters into one chunk per CPU. Result order matches requesters.
func ComputeNearest(requesters []models.Candidate, branches []models.Candidate, onProgress ProgressCallback, logger LoggerCallback) ([]models.ResultRow, error) {
	if len(requesters) == 0 {
		return nil, fmt.Errorf("no requesters: %w", ErrInvalidInput)
	}
	if len(branches) == 0 {
		return nil, ErrEmptyCandidateSet
	}
	if logger == nil {
		logger = func(string) {}
	}

	total := len(requesters)
	results := make([]models.ResultRow, total)

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunkSize := (total + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	var processedCount int64

	logger(fmt.Sprintf("Starting parallel processing with %d CPUs, %d requesters, %d branches", numCPU, total, len(branches)))

	for i := 0; i < numCPU; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()

			for idx := s; idx < e; idx++ {
				src := requesters[idx]
				// branches is non-empty, so the error is always nil here.
				res, _ := Nearest(src.Loc, branches)

				results[idx] = models.ResultRow{
					RequesterID:   src.ID,
					RequesterName: src.Name,
					RequesterLat:  src.Loc.Lat,
					RequesterLon:  src.Loc.Lon,
					BranchID:      res.Candidate.ID,
					BranchName:    res.Candidate.Name,
					BranchLat:     res.Candidate.Loc.Lat,
					BranchLon:     res.Candidate.Loc.Lon,
					DistanceKm:    math.Round(res.DistanceKm*1000) / 1000,
				}

				count := atomic.AddInt64(&processedCount, 1)
				if count%500 == 0 && onProgress != nil {
					onProgress(int(count), total, "")
				}
			}
		}(start, end)
	}

	wg.Wait()

	if onProgress != nil {
		onProgress(total, total, "")
	}

	logger("Calculation completed.")
	return results, nil
}
