// Package jobs runs batch nearest-branch assignments in the background.
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/majnioui/calc/internal/calculator"
	"github.com/majnioui/calc/internal/excel"
	"github.com/majnioui/calc/internal/logger"
	"github.com/majnioui/calc/internal/metrics"
)

type JobStatus string

const (
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

const (
	RequesterSheet = "Requesters"
	BranchSheet    = "Branches"
	ResultSheet    = "Results"
)

type JobResult struct {
	Rows     int    `json:"rows"`
	Sheet    string `json:"sheet"`
	Output   string `json:"-"`
	Filename string `json:"filename"`
}

type Job struct {
	ID        string
	Status    JobStatus
	Logs      []string
	Progress  int // 0-100
	Result    *JobResult
	Error     string
	CreatedAt time.Time

	mu sync.RWMutex
}

// Snapshot is a copy of a job safe to serialise.
type Snapshot struct {
	ID        string     `json:"id"`
	Status    JobStatus  `json:"status"`
	Logs      []string   `json:"logs"`
	Progress  int        `json:"progress"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newJob() *Job {
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		Logs:      []string{},
		CreatedAt: time.Now(),
	}
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appendLog(msg)
}

func (j *Job) appendLog(msg string) {
	ts := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", ts, msg))
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.Progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.appendLog(msg)
	}
}

func (j *Job) fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusError
	j.Error = msg
	j.Logs = append(j.Logs, "[ERROR] "+msg)
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	var res *JobResult
	if j.Result != nil {
		r := *j.Result
		res = &r
	}
	return Snapshot{
		ID:        j.ID,
		Status:    j.Status,
		Logs:      logs,
		Progress:  j.Progress,
		Result:    res,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
	}
}

// Manager owns the in-memory job table.
type Manager struct {
	outputDir string
	ttl       time.Duration
	logger    logger.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

func NewManager(outputDir string, ttl time.Duration, log logger.Logger) *Manager {
	return &Manager{
		outputDir: outputDir,
		ttl:       ttl,
		logger:    log.WithFields(map[string]interface{}{"component": "jobs"}),
		jobs:      make(map[string]*Job),
	}
}

func (m *Manager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Start registers a job for the workbook at inputPath and processes it in
// the background. The input file is removed when the job ends.
func (m *Manager) Start(inputPath string) *Job {
	job := newJob()
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	metrics.BatchJobs.WithLabelValues(string(StatusRunning)).Inc()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.process(job, inputPath)
	}()
	return job
}

// Wait blocks until all started jobs have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) process(job *Job, inputPath string) {
	defer func() {
		if r := recover(); r != nil {
			job.fail(fmt.Sprintf("panic: %v", r))
		}
		_ = os.Remove(inputPath)

		snap := job.Snapshot()
		metrics.BatchJobs.WithLabelValues(string(StatusRunning)).Dec()
		metrics.BatchJobs.WithLabelValues(string(snap.Status)).Inc()
		m.logger.Info("batch job finished", map[string]interface{}{
			"jobId":  job.ID,
			"status": snap.Status,
			"error":  snap.Error,
		})
	}()

	job.Log(fmt.Sprintf("Processing file: %s", filepath.Base(inputPath)))

	f, err := excel.OpenFile(inputPath)
	if err != nil {
		job.fail(fmt.Sprintf("cannot open workbook: %v", err))
		return
	}
	defer f.Close()

	job.Log("Reading requesters...")
	requesters, err := excel.ReadSheet(f, RequesterSheet)
	if err != nil {
		job.fail(fmt.Sprintf("read %s: %v", RequesterSheet, err))
		return
	}
	job.Log(fmt.Sprintf("%d requesters read.", len(requesters)))

	job.Log("Reading branches...")
	branches, err := excel.ReadSheet(f, BranchSheet)
	if err != nil {
		job.fail(fmt.Sprintf("read %s: %v", BranchSheet, err))
		return
	}
	job.Log(fmt.Sprintf("%d branches read.", len(branches)))

	start := time.Now()
	results, err := calculator.ComputeNearest(requesters, branches, job.SetProgress, job.Log)
	if err != nil {
		job.fail(fmt.Sprintf("calculation failed: %v", err))
		return
	}
	job.Log(fmt.Sprintf("Calculation took %s", time.Since(start)))

	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		job.fail(fmt.Sprintf("create output dir: %v", err))
		return
	}
	filename := job.ID + "_nearest.xlsx"
	outputPath := filepath.Join(m.outputDir, filename)

	job.Log("Writing result workbook...")
	if err := excel.WriteResult(outputPath, results, ResultSheet); err != nil {
		job.fail(fmt.Sprintf("write result: %v", err))
		return
	}

	job.mu.Lock()
	job.Status = StatusDone
	job.appendLog("Done.")
	job.Result = &JobResult{
		Rows:     len(results),
		Sheet:    ResultSheet,
		Output:   outputPath,
		Filename: filename,
	}
	job.Progress = 100
	job.mu.Unlock()
}

// Sweep drops jobs older than the TTL along with their output files.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		snap := job.Snapshot()
		if snap.Status == StatusRunning || now.Sub(snap.CreatedAt) < m.ttl {
			continue
		}
		if snap.Result != nil {
			_ = os.Remove(snap.Result.Output)
		}
		metrics.BatchJobs.WithLabelValues(string(snap.Status)).Dec()
		delete(m.jobs, id)
		removed++
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Debug("swept batch jobs", map[string]interface{}{"removed": n})
			}
		}
	}
}
