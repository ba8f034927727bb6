package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// LoopError describes why a Loop terminated on its own.
type LoopError struct {
	Target Target
	Op     string // "open", "probe" or "panic"
	Err    error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *LoopError) Unwrap() error {
	return e.Err
}

// Supervisor manages the goroutines running one Loop per target. The
// loops share nothing but the logger.
type Supervisor struct {
	Prober  Prober
	Logger  *slog.Logger
	Timeout time.Duration // per attempt, DefaultTimeout if zero

	ReportInterval time.Duration // summaries per target, disabled if zero
	HistorySize    int
}

// Run starts a Loop for every target, duplicates included, and blocks
// until all of them returned. Under normal operation that never happens
// before ctx is done. The result holds the terminal error of each loop in
// target order; loops stopped by ctx report nil.
func (s *Supervisor) Run(ctx context.Context, targets []Target) []error {
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.run(ctx, target)
		}()
	}
	wg.Wait()

	return errs
}

// run executes the Loop for a single target. A panic is confined to it.
func (s *Supervisor) run(ctx context.Context, target Target) (err error) {
	loop := Loop{
		Target:         target,
		Prober:         s.Prober,
		Logger:         s.Logger,
		Timeout:        s.Timeout,
		ReportInterval: s.ReportInterval,
		HistorySize:    s.HistorySize,
	}

	defer func() {
		if r := recover(); r != nil {
			loop.logger().Error("probe loop crashed", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = &LoopError{Target: target, Op: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	return loop.Run(ctx)
}
