package game

import (
	"runtime"
	"sync"
	"time"

	"github.com/accelagent/parkour/neural"
)

// parallelThreshold is the minimum job count to fan out to the workers.
// Below this the goroutine handoff costs more than the inference.
const parallelThreshold = 8

// policyJob is one agent's inference for the current tick. Jobs only read
// their observation and write their own action slice.
type policyJob struct {
	agentID uint64
	name    string
	policy  neural.Policy
	obs     []float64
	actions []float64
	elapsed time.Duration
	err     error
}

// workChunk is a range of jobs for a single worker.
type workChunk struct {
	jobs []policyJob
}

// policyPool runs policy inference on persistent worker goroutines.
type policyPool struct {
	numWorkers int

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newPolicyPool(workers int) *policyPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &policyPool{numWorkers: workers}
}

// start launches the workers. It is a no-op when they already run.
func (p *policyPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *policyPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *policyPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			compute(chunk.jobs)
			p.doneChan <- struct{}{}
		}
	}
}

// run evaluates every job and returns once all are done. Errors are left
// on the jobs.
func (p *policyPool) run(jobs []policyJob) {
	n := len(jobs)
	if n == 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		compute(jobs)
		return
	}

	p.start()
	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		p.workChan <- workChunk{jobs: jobs[start:end]}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

func compute(jobs []policyJob) {
	for i := range jobs {
		j := &jobs[i]
		start := time.Now()
		j.err = j.policy.Act(j.obs, j.actions)
		j.elapsed = time.Since(start)
	}
}
