package site

import "sync"

// workerPool runs fn over jobs on a fixed number of goroutines and returns
// the results in job order.
type workerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan indexed[Job]
	results    chan indexed[Result]
	wg         sync.WaitGroup
}

type indexed[T any] struct {
	i int
	v T
}

func newWorkerPool[Job any, Result any](numWorkers, numJobs int) *workerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}
	return &workerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan indexed[Job], numJobs),
		results:    make(chan indexed[Result], numJobs),
	}
}

// run submits all jobs, waits for the workers and collects results.
func (p *workerPool[Job, Result]) run(jobs []Job, fn func(Job) Result) []Result {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- indexed[Result]{job.i, fn(job.v)}
			}
		}()
	}
	for i, j := range jobs {
		p.jobs <- indexed[Job]{i, j}
	}
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	out := make([]Result, len(jobs))
	for r := range p.results {
		out[r.i] = r.v
	}
	return out
}
