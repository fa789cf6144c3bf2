// Package scheduler serializes heavy image work through a fixed number of
// isolated worker slots. Requests beyond the slot count queue FIFO; a
// fatal worker failure fails every in-flight request with one shared error
// and the scheduler rebuilds its pool on the next submission.
package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

// DefaultSlots bounds concurrent transforms. Two keeps peak memory in
// check: a single decoded image can already approach the pixel ceiling.
const DefaultSlots = 2

var (
	// ErrContextLost is the shared error every pending request fails with
	// when the execution context becomes unusable.
	ErrContextLost = errors.New("execution context lost")

	// ErrTerminated is delivered to requests still pending when Terminate
	// tears the scheduler down.
	ErrTerminated = errors.New("scheduler terminated")

	ErrEmptyID     = errors.New("request id must not be empty")
	ErrDuplicateID = errors.New("request id already pending")
)

type pendingEntry struct {
	ch chan Result
}

type poolFactory func(size int, handler Handler) workerPool

// Scheduler owns the worker pool, the FIFO queue, and the pending-request
// map. All bookkeeping is mutated under one mutex; workers only ever touch
// their own transient payloads.
type Scheduler struct {
	slots   int
	handler Handler
	newPool poolFactory

	mu      sync.Mutex
	pool    workerPool
	gen     int // pool generation; stale drain goroutines are ignored
	running int
	queue   []Envelope
	pending map[string]*pendingEntry
}

// New creates a Scheduler with the given slot count. The pool itself is
// created lazily on the first Submit so a fresh scheduler (and one reset
// after a fatal failure) holds no goroutines.
func New(slots int, handler Handler) *Scheduler {
	return &Scheduler{
		slots:   slots,
		handler: handler,
		newPool: newPool,
		pending: make(map[string]*pendingEntry),
	}
}

// Submit queues one request and returns its future. The returned channel
// receives exactly one Result.
func (s *Scheduler) Submit(env Envelope) <-chan Result {
	ch := make(chan Result, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if env.ID == "" {
		ch <- Result{Err: ErrEmptyID}
		return ch
	}
	if _, exists := s.pending[env.ID]; exists {
		ch <- Result{Err: fmt.Errorf("%w: %s", ErrDuplicateID, env.ID)}
		return ch
	}

	if s.pool == nil {
		s.spawnPoolLocked()
	}

	s.pending[env.ID] = &pendingEntry{ch: ch}
	s.queue = append(s.queue, env)
	s.dispatchLocked()

	return ch
}

// Stats reports the current running and queued request counts.
func (s *Scheduler) Stats() (running, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, len(s.queue)
}

// Terminate tears down the execution context and clears all queued and
// pending state unconditionally. It may be called at any time; afterwards
// the scheduler is back in its initial empty state and usable again.
func (s *Scheduler) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(ErrTerminated)
}

func (s *Scheduler) spawnPoolLocked() {
	s.pool = s.newPool(s.slots, s.handler)
	s.gen++
	go s.drain(s.pool, s.gen)
}

// drain is the coordinating loop for one pool generation. It is the only
// goroutine that feeds worker outcomes back into the bookkeeping.
func (s *Scheduler) drain(p workerPool, gen int) {
	for {
		select {
		case resp := <-p.Responses():
			s.complete(gen, resp)
		case err := <-p.Fatal():
			s.fatal(gen, err)
			return
		case <-p.Done():
			return
		}
	}
}

// dispatchLocked pops queued requests while slots are free. A synchronous
// send failure frees the slot again, fails that one request, and keeps
// dispatching so no phantom slot stays occupied.
func (s *Scheduler) dispatchLocked() {
	for s.running < s.slots && len(s.queue) > 0 {
		env := s.queue[0]
		s.queue = s.queue[1:]
		s.running++

		if err := s.pool.Send(env); err != nil {
			s.running--
			if entry, ok := s.pending[env.ID]; ok {
				delete(s.pending, env.ID)
				entry.ch <- Result{Err: fmt.Errorf("dispatch %s: %w", env.ID, err)}
			}
		}
	}
}

// complete resolves one response and immediately re-dispatches.
func (s *Scheduler) complete(gen int, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return // response from a pool that has already been reset
	}

	entry, ok := s.pending[resp.ID]
	if !ok {
		zlog.Logger.Warn().Str("id", resp.ID).Msg("response for unknown request id, ignoring")
		return
	}
	delete(s.pending, resp.ID)
	s.running--

	entry.ch <- toResult(resp)
	s.dispatchLocked()
}

// fatal fails every pending and queued request with one shared error and
// resets the scheduler to empty. The next Submit builds a fresh pool.
func (s *Scheduler) fatal(gen int, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	zlog.Logger.Error().Err(cause).Msg("execution context lost, resetting scheduler")
	s.resetLocked(fmt.Errorf("%w: %v", ErrContextLost, cause))
}

func (s *Scheduler) resetLocked(failure error) {
	for id, entry := range s.pending {
		delete(s.pending, id)
		entry.ch <- Result{Err: failure}
	}
	s.queue = nil
	s.running = 0
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	s.gen++ // invalidate any in-flight drain deliveries
}

func toResult(resp Response) Result {
	r := Result{
		Result:  resp.Result,
		IsValid: resp.IsValid,
		Format:  resp.Format,
	}
	if resp.Kind == KindProcessError || (resp.Kind == KindValidateResult && !resp.IsValid && resp.Error != "") {
		r.Err = errors.New(resp.Error)
	}
	return r
}
