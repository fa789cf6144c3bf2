package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is the synchronous dispatch failure returned by Send after
// the pool has been torn down.
var ErrPoolClosed = errors.New("worker pool closed")

// workerPool is the execution context abstraction the scheduler drives.
// The production implementation is a goroutine pool; tests substitute a
// controllable fake through the scheduler's pool factory.
type workerPool interface {
	// Send hands one request to a worker. It fails synchronously when the
	// pool is closed.
	Send(env Envelope) error
	Responses() <-chan Response
	// Fatal reports an unrecoverable worker failure. After a fatal error
	// the pool must be discarded.
	Fatal() <-chan error
	Done() <-chan struct{}
	Close()
}

// pool runs a fixed set of worker goroutines, each handling at most one
// request at a time. Requests and responses are copied across channels;
// a crashing request can corrupt nothing beyond its own worker.
type pool struct {
	handler   Handler
	requests  chan Envelope
	responses chan Response
	fatal     chan error
	done      chan struct{}
	closeOnce sync.Once
}

func newPool(size int, handler Handler) workerPool {
	p := &pool{
		handler:   handler,
		requests:  make(chan Envelope, size),
		responses: make(chan Response, size),
		fatal:     make(chan error, size),
		done:      make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *pool) run() {
	for {
		select {
		case <-p.done:
			return
		case env := <-p.requests:
			resp, err := p.execute(env)
			if err != nil {
				select {
				case p.fatal <- err:
				case <-p.done:
				}
				return
			}
			select {
			case p.responses <- resp:
			case <-p.done:
				return
			}
		}
	}
}

// execute runs the handler, converting a panic into a fatal pool error
// instead of taking the process down.
func (p *pool) execute(env Envelope) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker crashed handling %s: %v", env.ID, r)
		}
	}()
	return p.handler(context.Background(), env), nil
}

func (p *pool) Send(env Envelope) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.requests <- env:
		return nil
	case <-p.done:
		return ErrPoolClosed
	}
}

func (p *pool) Responses() <-chan Response { return p.responses }
func (p *pool) Fatal() <-chan error        { return p.fatal }
func (p *pool) Done() <-chan struct{}      { return p.done }

func (p *pool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
