package flow

import (
	"sync"

	"github.com/imishinist/go-streamflow"
)

// Chain is a pipeline of stages fed by a source. It exposes the output and
// completion of its last stage, and the first failure raised by any stage.
type Chain struct {
	stages []Stage
	errs   chan error
}

var _ streamflow.Terminal = (*Chain)(nil)

// Pipeline connects src to the given stages in order and returns the chain.
func Pipeline(src streamflow.Source, first Stage, rest ...Stage) *Chain {
	stages := append([]Stage{first}, rest...)
	c := &Chain{
		stages: stages,
		errs:   make(chan error, 1),
	}

	src.Via(first)
	for i := 1; i < len(stages); i++ {
		stages[i-1].Via(stages[i])
	}

	go c.collectErrors()
	return c
}

func (c *Chain) collectErrors() {
	var (
		once sync.Once
		wg   sync.WaitGroup
	)
	for _, s := range c.stages {
		wg.Add(1)
		go func(s Stage) {
			defer wg.Done()
			for err := range s.Errors() {
				once.Do(func() { c.errs <- err })
			}
		}(s)
	}
	wg.Wait()
	close(c.errs)
}

func (c *Chain) Out() <-chan any {
	return c.last().Out()
}

// Errors yields at most one error: the first stage failure of the chain.
func (c *Chain) Errors() <-chan error {
	return c.errs
}

func (c *Chain) Finished() <-chan struct{} {
	return c.last().Finished()
}

// Stages returns the stages of the chain in order.
func (c *Chain) Stages() []Stage {
	return c.stages
}

func (c *Chain) last() Stage {
	return c.stages[len(c.stages)-1]
}
