package server

import "golang.org/x/sync/errgroup"

// Executor runs units of work. Connection handlers are submitted to it one
// per accepted connection.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func())

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) { f(task) }

// GoExecutor runs every task on a new goroutine.
type GoExecutor struct{}

// Execute starts task on a new goroutine.
func (GoExecutor) Execute(task func()) { go task() }

// InlineExecutor runs tasks on the calling goroutine.
type InlineExecutor struct{}

// Execute runs task and returns when it is done.
func (InlineExecutor) Execute(task func()) { task() }

// PoolExecutor runs at most n tasks at a time. Execute blocks while the pool
// is full, which holds back the accept loop.
type PoolExecutor struct {
	g errgroup.Group
}

// NewPoolExecutor returns an executor running at most n tasks concurrently.
// n <= 0 means no limit.
func NewPoolExecutor(n int) *PoolExecutor {
	p := &PoolExecutor{}
	if n > 0 {
		p.g.SetLimit(n)
	}
	return p
}

// Execute runs task once a slot is free.
func (p *PoolExecutor) Execute(task func()) {
	p.g.Go(func() error {
		task()
		return nil
	})
}

// Wait blocks until every submitted task has returned.
func (p *PoolExecutor) Wait() {
	p.g.Wait()
}
