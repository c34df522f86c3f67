// Package jobqueue implements the producer half of background enrichment
// (C11): creating an EnrichmentJob, pushing it onto the FIFO queue, and
// writing/reading the poll-by-id results store. The consumer half (the
// worker loop that pops jobs and re-runs slow probes) lives in
// internal/worker, grounded on the same teacher file
// (internal/worker/runner.go) but split out per spec.md's C11/C10 boundary.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signupguard/internal/models"
	"signupguard/internal/store"
)

const (
	// QueueKey is the FIFO list key every producer pushes to and every
	// worker pops from, per spec.md §4.12.
	QueueKey = "jobs:enrich"

	resultKeyPrefix = "result:"
)

// Queue is the producer-facing half of the job queue + results store.
type Queue struct {
	store      store.Store
	resultTTLSeconds int64
}

// New builds a Queue. resultTTLSeconds is the TTL applied to entries at
// result:{job_id} (spec.md default 24h = 86400).
func New(s store.Store, resultTTLSeconds int64) *Queue {
	return &Queue{store: s, resultTTLSeconds: resultTTLSeconds}
}

// Enqueue creates a new EnrichmentJob for input wrapping partial (the FULL
// envelope shape with slow-signal fields left null), pushes it to
// jobs:enrich, and writes the same partial envelope to result:{job_id} so an
// immediate poll returns PENDING rather than NOT_FOUND. It returns the job
// ID.
func (q *Queue) Enqueue(ctx context.Context, input models.EmailInput, partial models.Envelope, createdAtUnix int64) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("jobqueue: generate job id: %w", err)
	}
	jobID := id.String()
	partial.Enrichment = models.Enrichment{Status: models.EnrichmentPending, JobID: jobID}

	job := models.EnrichmentJob{
		JobID:           jobID,
		CreatedAtUnix:   createdAtUnix,
		Input:           input,
		PartialEnvelope: partial,
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("jobqueue: marshal job %s: %w", jobID, err)
	}
	if err := q.store.QueuePush(ctx, QueueKey, jobJSON); err != nil {
		return "", fmt.Errorf("jobqueue: push job %s: %w", jobID, err)
	}

	if err := q.writeResult(ctx, jobID, partial); err != nil {
		return "", err
	}

	return jobID, nil
}

// Result polls result:{job_id}, returning found=false when the id is
// unknown or its entry has expired — callers surface that as NOT_FOUND.
func (q *Queue) Result(ctx context.Context, jobID string) (models.Envelope, bool, error) {
	raw, found, err := q.store.Get(ctx, resultKeyPrefix+jobID)
	if err != nil {
		return models.Envelope{}, false, err
	}
	if !found {
		return models.Envelope{}, false, nil
	}

	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return models.Envelope{}, false, fmt.Errorf("jobqueue: unmarshal result %s: %w", jobID, err)
	}
	return envelope, true, nil
}

func (q *Queue) writeResult(ctx context.Context, jobID string, envelope models.Envelope) error {
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("jobqueue: marshal result %s: %w", jobID, err)
	}
	ttl := time.Duration(q.resultTTLSeconds) * time.Second
	if err := q.store.Set(ctx, resultKeyPrefix+jobID, envelopeJSON, ttl); err != nil {
		return fmt.Errorf("jobqueue: write result %s: %w", jobID, err)
	}
	return nil
}

// WriteResult overwrites result:{job_id} — exported for the worker, which
// writes the enriched envelope once the slow probes complete.
func (q *Queue) WriteResult(ctx context.Context, jobID string, envelope models.Envelope) error {
	return q.writeResult(ctx, jobID, envelope)
}
