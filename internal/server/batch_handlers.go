package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/majnioui/calc/internal/jobs"
)

func (s *Server) startBatch(c *gin.Context) {
	if limit := s.cfg.Batch.MaxUpload; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	file, err := c.FormFile("input_file")
	if err != nil {
		abortWith(c, http.StatusBadRequest, "input_file is required")
		return
	}
	if filepath.Ext(file.Filename) != ".xlsx" {
		abortWith(c, http.StatusBadRequest, "input_file must be an .xlsx workbook")
		return
	}

	if err := os.MkdirAll(s.cfg.Batch.UploadDir, 0o755); err != nil {
		s.fail(c, err, "could not store upload")
		return
	}
	inputPath := filepath.Join(s.cfg.Batch.UploadDir,
		fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, inputPath); err != nil {
		s.fail(c, err, "could not store upload")
		return
	}

	job := s.jobs.Start(inputPath)
	s.logger.Info("batch job started", map[string]interface{}{
		"requestId": c.GetString("requestId"),
		"jobId":     job.ID,
		"file":      file.Filename,
	})
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": jobs.StatusRunning})
}

func (s *Server) batchJob(c *gin.Context) (*jobs.Job, bool) {
	job := s.jobs.Get(c.Param("id"))
	if job == nil {
		abortWith(c, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func (s *Server) batchStatus(c *gin.Context) {
	job, ok := s.batchJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

func (s *Server) batchDownload(c *gin.Context) {
	job, ok := s.batchJob(c)
	if !ok {
		return
	}
	snap := job.Snapshot()
	if snap.Status != jobs.StatusDone || snap.Result == nil {
		abortWith(c, http.StatusConflict, fmt.Sprintf("job is %s", snap.Status))
		return
	}
	c.FileAttachment(snap.Result.Output, snap.Result.Filename)
}
