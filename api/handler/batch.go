package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/mailscout/models"
	"github.com/use-agent/mailscout/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			expireBatches(time.Now().Add(-1 * time.Hour).Unix())
		}
	}()
}

func expireBatches(cutoff int64) {
	batchStore.Range(func(key, value any) bool {
		job := value.(*models.BatchJob)
		if job.CreatedAt < cutoff {
			batchStore.Delete(key)
		}
		return true
	})
}

// PostBatch returns a handler for POST /api/v1/batch/emails.
// It validates the request, creates a batch job, and looks up every
// domain in the background.
func PostBatch(lk Looker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "failed",
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		jobID := "batch-" + uuid.NewString()
		job := models.NewBatchJob(jobID, len(req.Domains), time.Now().Unix())
		batchStore.Store(jobID, job)

		go runBatch(lk, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.Domains),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch looks up every domain of the job. Concurrency is bounded by
// the Looker (see Limiter).
func runBatch(lk Looker, job *models.BatchJob, req models.BatchRequest) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for i, domain := range req.Domains {
		wg.Add(1)
		go func(idx int, domain string) {
			defer wg.Done()
			resp := lookupOne(context.Background(), lk, strings.TrimSpace(domain))
			if !resp.Success {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			job.SetResult(idx, resp)
		}(i, domain)
	}

	wg.Wait()

	var status string
	switch {
	case failed == job.Total:
		status = "failed"
	case failed > 0:
		status = "partial"
	default:
		status = "completed"
	}
	job.Finish(status)

	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"failed", failed,
		"total", job.Total,
	)

	if req.WebhookURL != "" {
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      webhook.EventBatchCompleted,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      job.Snapshot(),
		})
	}
}
