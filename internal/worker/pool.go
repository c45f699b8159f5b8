package worker

import (
	"sync"

	"github.com/rs/zerolog/log"

	"saathi-backend/internal/chat"
)

// Pool runs answer-service round trips on a fixed number of goroutines so a
// burst of submissions cannot open an unbounded number of upstream calls.
type Pool struct {
	jobs        chan func()
	workerCount int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

var _ chat.Dispatcher = &Pool{}

func NewPool(workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		jobs:        make(chan func(), queueSize),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Info().Int("workers", p.workerCount).Msg("answer worker pool started")
}

// Stop stops accepting jobs and waits for the workers to finish the running
// and already queued ones.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Dispatch queues job, blocking while the queue is full. Jobs dispatched
// after Stop are dropped.
func (p *Pool) Dispatch(job func()) {
	select {
	case <-p.stopChan:
		log.Warn().Msg("worker pool stopped, dropping job")
		return
	default:
	}

	select {
	case p.jobs <- job:
	case <-p.stopChan:
		log.Warn().Msg("worker pool stopped, dropping job")
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			p.drain(id)
			log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		case job := <-p.jobs:
			p.run(id, job)
		}
	}
}

// drain runs whatever is left in the queue so accepted questions still get
// their round trip.
func (p *Pool) drain(id int) {
	for {
		select {
		case job := <-p.jobs:
			p.run(id, job)
		default:
			return
		}
	}
}

func (p *Pool) run(id int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("worker", id).Interface("panic", r).Msg("answer job panicked")
		}
	}()
	job()
}
