package orchestrator

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// RepositoryJob is one repository analysis submitted to a pool.
type RepositoryJob struct {
	Name    string
	Data    models.RepositoryData
	Request string
}

// JobResult pairs a finished job with its analysis result.
type JobResult struct {
	ID     string
	Job    RepositoryJob
	Result *models.AnalysisResult
}

// AnalysisPool runs repository analyses concurrently on one Orchestrator,
// at most maxConcurrent at a time.
type AnalysisPool struct {
	orch *Orchestrator
	sem  chan struct{}

	mu      sync.RWMutex
	running map[string]RepositoryJob
	order   []string
	results map[string]JobResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalysisPool creates a pool. maxConcurrent below 1 means 1.
func NewAnalysisPool(ctx context.Context, orch *Orchestrator, maxConcurrent int) *AnalysisPool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &AnalysisPool{
		orch:    orch,
		sem:     make(chan struct{}, maxConcurrent),
		running: make(map[string]RepositoryJob),
		results: make(map[string]JobResult),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit starts the job as soon as a slot is free and returns its ID.
func (p *AnalysisPool) Submit(job RepositoryJob) string {
	id := uuid.New().String()[:8]

	p.mu.Lock()
	p.order = append(p.order, id)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
		case <-p.ctx.Done():
			p.finish(id, job, &models.AnalysisResult{
				AnalysisType: AnalysisTypeRepository,
				Errors:       []string{p.ctx.Err().Error()},
			})
			return
		}
		defer func() { <-p.sem }()

		p.mu.Lock()
		p.running[id] = job
		p.mu.Unlock()

		result := p.orch.AnalyzeRepository(p.ctx, job.Name, job.Data, job.Request)
		if !result.Success {
			log.Printf("[pool] analysis of %s failed: %v", job.Name, result.Errors)
		}
		p.finish(id, job, result)
	}()

	return id
}

func (p *AnalysisPool) finish(id string, job RepositoryJob, result *models.AnalysisResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, id)
	p.results[id] = JobResult{ID: id, Job: job, Result: result}
}

// Count returns the number of jobs currently running.
func (p *AnalysisPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.running)
}

// Wait blocks until every submitted job has finished and returns the
// results in submission order.
func (p *AnalysisPool) Wait() []JobResult {
	p.wg.Wait()

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]JobResult, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.results[id])
	}
	return out
}

// Stop cancels queued and running jobs and waits for them to return.
func (p *AnalysisPool) Stop() []JobResult {
	p.cancel()
	return p.Wait()
}
