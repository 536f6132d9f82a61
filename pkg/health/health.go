// Package health runs named integrity checks over an opened index
// concurrently and folds them into one report.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Check probes one store. Returning ErrSkipped reports the check as skipped
// rather than failed.
type Check func(ctx context.Context) error

// ErrSkipped is returned by a Check whose store is not present.
var ErrSkipped = errors.New("check skipped")

type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
	Err     error  `json:"-"`
}

// Report is the aggregated result of all checks. Status is the worst
// status among components; skipped checks do not fail the report.
type Report struct {
	Status     Status            `json:"status"`
	Components map[string]Result `json:"components"`
	Timestamp  string            `json:"timestamp"`
}

// Err joins the errors of every failed component, in name order.
func (r Report) Err() error {
	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if res := r.Components[name]; res.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
	}
	return errors.Join(errs...)
}

type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: logger.WithComponent("health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all registered checks concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusOK,
		Components: make(map[string]Result, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			res := Result{Status: StatusOK, Latency: time.Since(start).Round(time.Microsecond).String()}
			switch {
			case errors.Is(err, ErrSkipped):
				res.Status = StatusSkipped
				res.Message = err.Error()
			case err != nil:
				res.Status = StatusFailed
				res.Message = err.Error()
				res.Err = err
				c.logger.Error("integrity check failed", "check", name, "error", err)
			}
			mu.Lock()
			report.Components[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, res := range report.Components {
		if res.Status == StatusFailed {
			report.Status = StatusFailed
			break
		}
	}
	return report
}
