package models

import "sync"

// BatchRequest is the payload for POST /api/v1/batch/emails.
type BatchRequest struct {
	// Domains to look up. Required.
	Domains []string `json:"domains" binding:"required,min=1,max=100"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/batch/emails.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*LookupResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch lookup.
type BatchJob struct {
	ID        string
	Total     int
	CreatedAt int64 // unix timestamp

	mu        sync.Mutex
	status    string // "processing", "completed", "failed", "partial"
	completed int
	results   []*LookupResponse
}

// NewBatchJob creates a job in the "processing" state.
func NewBatchJob(id string, total int, createdAt int64) *BatchJob {
	return &BatchJob{
		ID:        id,
		Total:     total,
		CreatedAt: createdAt,
		status:    "processing",
		results:   make([]*LookupResponse, total),
	}
}

// SetResult stores the response for the idx-th domain.
func (j *BatchJob) SetResult(idx int, resp *LookupResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = resp
	j.completed++
}

// Finish sets the terminal status.
func (j *BatchJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Snapshot returns a copy safe to serialize while the job is running.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*LookupResponse, len(j.results))
	copy(results, j.results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: j.completed,
		Total:     j.Total,
		Results:   results,
	}
}
