// Package worker implements the consumer half of background enrichment
// (C11): a pool of goroutines blocking-popping jobs from jobs:enrich,
// re-running the slow probes (C4/C5/C6), re-scoring, and overwriting
// result:{job_id}. Grounded on the teacher's internal/worker.Start/
// processTask — the same worker-pool-with-graceful-shutdown shape,
// generalized from a single Postgres-results-table write to the
// store-backed jobqueue.Queue.WriteResult, and from validator.VerifyEmail
// to the generic probes.Probe list.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"signupguard/internal/jobqueue"
	"signupguard/internal/models"
	"signupguard/internal/probes"
	"signupguard/internal/scoring"
	"signupguard/internal/store"
)

const (
	popTimeout    = 2 * time.Second
	jobDeadline   = 5 * time.Minute
	backoffOnErr  = time.Second
)

// Pool runs a fixed number of worker goroutines that consume enrichment
// jobs until ctx is cancelled.
type Pool struct {
	store       store.Store
	queue       *jobqueue.Queue
	slowProbes  []probes.Probe
	scorer      *scoring.Scorer
	concurrency int
}

func New(s store.Store, q *jobqueue.Queue, slowProbes []probes.Probe, scorer *scoring.Scorer, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{store: s, queue: q, slowProbes: slowProbes, scorer: scorer, concurrency: concurrency}
}

// Run launches the pool and blocks until every worker goroutine exits,
// which happens once ctx is cancelled (after finishing any in-flight job).
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 1; i <= p.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("worker: pool shut down")
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		raw, ok, err := p.store.QueuePop(ctx, jobqueue.QueueKey, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("worker %d: shutting down", workerID)
				return
			}
			log.Printf("worker %d: queue pop error: %v, backing off", workerID, err)
			select {
			case <-time.After(backoffOnErr):
			case <-ctx.Done():
				return
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if !ok {
			continue
		}

		var job models.EnrichmentJob
		if err := json.Unmarshal(raw, &job); err != nil {
			log.Printf("worker %d: malformed job (skipping): %v", workerID, err)
			continue
		}

		p.process(ctx, workerID, job)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job models.EnrichmentJob) {
	jobCtx, cancel := context.WithTimeout(ctx, jobDeadline)
	defer cancel()

	envelope := job.PartialEnvelope
	signals := envelope.Signals

	parsed := models.ParsedEmail{
		Raw:        job.Input.RawEmail,
		Normalized: envelope.NormalizedEmail,
		Domain:     domainOf(envelope.NormalizedEmail),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, probe := range p.slowProbes {
		wg.Add(1)
		go func(probe probes.Probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(jobCtx, probe.Timeout())
			defer cancel()

			var local models.Signals
			probe.Run(probeCtx, job.Input, parsed, &local)

			mu.Lock()
			mergeSlowSignals(&signals, local)
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	riskSummary, reasons := p.scorer.Score(signals)
	envelope.Signals = signals
	envelope.RiskSummary = riskSummary
	envelope.Reasons = reasons
	envelope.Enrichment = models.Enrichment{Status: models.EnrichmentComplete, JobID: job.JobID}

	if err := p.queue.WriteResult(ctx, job.JobID, envelope); err != nil {
		log.Printf("worker %d: failed to write result for job %s: %v", workerID, job.JobID, err)
		failed := envelope
		failed.Enrichment = models.Enrichment{Status: models.EnrichmentFailed, JobID: job.JobID}
		_ = p.queue.WriteResult(ctx, job.JobID, failed)
		return
	}

	log.Printf("worker %d: enriched job %s (score=%d)", workerID, job.JobID, riskSummary.Score)
}

func mergeSlowSignals(dst *models.Signals, src models.Signals) {
	if src.DomainAgeDays != nil {
		dst.DomainAgeDays = src.DomainAgeDays
	}
	if src.IsNewDomain != nil {
		dst.IsNewDomain = src.IsNewDomain
	}
	if src.Country != nil {
		dst.Country = src.Country
	}
	if src.IsVPN != nil {
		dst.IsVPN = src.IsVPN
	}
	if src.IsProxy != nil {
		dst.IsProxy = src.IsProxy
	}
	if src.IsDatacenter != nil {
		dst.IsDatacenter = src.IsDatacenter
	}
	if src.SMTPValid != nil {
		dst.SMTPValid = src.SMTPValid
	}
	if src.SMTPDeliverable != nil {
		dst.SMTPDeliverable = src.SMTPDeliverable
	}
	if src.SMTPCatchAll != nil {
		dst.SMTPCatchAll = src.SMTPCatchAll
	}
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
