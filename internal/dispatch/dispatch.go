//
// Copyright 2024 The Signbatch Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dispatch schedules batches of file operations. Timestamping
// endpoints are commonly rate-limited, so operations that touch them run
// strictly sequentially; verify and plain sign batches fan out across a
// bounded worker pool. A failing task never halts its batch.
package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/signbatch/signbatch/internal/bridge"
	"github.com/signbatch/signbatch/internal/signtool"
)

// Kind selects the per-file operation.
type Kind int

const (
	KindVerify Kind = iota
	KindSign
	KindTimestamp
)

// Task is one file operation. Consumed exactly once.
type Task struct {
	Path string
	Kind Kind

	// Sign parameters.
	PFXPath      string
	Password     string
	AddTimestamp bool

	// Timestamp server, for sign-with-timestamp and timestamp-only.
	TimestampURL string
}

// Ops is the per-file operation surface the dispatcher drives.
// *executor.Executor satisfies it.
type Ops interface {
	Verify(ctx context.Context, path string) signtool.SignatureInfo
	Sign(ctx context.Context, path, pfxPath, password string, addTimestamp bool, tsURL string) error
	Timestamp(ctx context.Context, path, tsURL string) error
}

// BatchResult accumulates per-task outcomes. Safe for concurrent updates.
type BatchResult struct {
	mu        sync.Mutex
	counts    map[signtool.Status]int
	succeeded int
	failed    int
	errs      *multierror.Error
}

func newBatchResult() *BatchResult {
	return &BatchResult{counts: map[signtool.Status]int{}}
}

func (r *BatchResult) addStatus(s signtool.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[s]++
}

func (r *BatchResult) addSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
}

func (r *BatchResult) addFailure(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
}

// Count returns the number of verify results with the given status.
func (r *BatchResult) Count(s signtool.Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[s]
}

// Succeeded and Failed report sign/timestamp outcomes.
func (r *BatchResult) Succeeded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded
}

func (r *BatchResult) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Err returns the aggregated per-task failures, or nil when every task
// succeeded.
func (r *BatchResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs.ErrorOrNil()
}

// Dispatcher runs task batches and reports through the mailbox.
type Dispatcher struct {
	Ops     Ops
	Mailbox *bridge.Mailbox
}

// RunSequential executes tasks one at a time in submission order. Required
// for operations against timestamp authorities.
func (d *Dispatcher) RunSequential(ctx context.Context, tasks []Task) *BatchResult {
	n := len(tasks)
	res := newBatchResult()
	d.Mailbox.SetProgress(0, n)
	for i, t := range tasks {
		d.runTask(ctx, t, i+1, n, res)
		d.Mailbox.Step()
	}
	d.summarize(res)
	return res
}

// RunConcurrent executes independent tasks across at most workers
// goroutines (minimum 1). Completion order is unspecified; each task's log
// lines and progress step are emitted together as it completes.
func (d *Dispatcher) RunConcurrent(ctx context.Context, tasks []Task, workers int) *BatchResult {
	if workers < 1 {
		workers = 1
	}
	n := len(tasks)
	res := newBatchResult()
	d.Mailbox.SetProgress(0, n)

	var emitMu sync.Mutex
	completed := 0

	g := &errgroup.Group{}
	g.SetLimit(workers)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			emit := func(fn func(i int)) {
				emitMu.Lock()
				defer emitMu.Unlock()
				completed++
				fn(completed)
				d.Mailbox.Step()
			}
			d.runTaskDeferred(ctx, t, n, res, emit)
			// Never propagate: sibling tasks must keep running.
			return nil
		})
	}
	g.Wait()

	d.summarize(res)
	return res
}

// runTask runs one task and emits its log lines immediately, for the
// sequential policy.
func (d *Dispatcher) runTask(ctx context.Context, t Task, i, n int, res *BatchResult) {
	d.runTaskDeferred(ctx, t, n, res, func(fn func(i int)) { fn(i) })
}

// runTaskDeferred runs one task, then hands an emission closure to emit so
// the concurrent policy can assign completion indexes and keep each task's
// lines contiguous.
func (d *Dispatcher) runTaskDeferred(ctx context.Context, t Task, n int, res *BatchResult, emit func(fn func(i int))) {
	name := filepath.Base(t.Path)
	switch t.Kind {
	case KindVerify:
		info := d.Ops.Verify(ctx, t.Path)
		res.addStatus(info.Status)
		emit(func(i int) {
			d.Mailbox.Logf(bridge.SeverityInfo, "[%d/%d] Verify: %s", i, n, name)
			d.Mailbox.Logf(statusSeverity(info.Status), "  Result: %s", statusLabel(info.Status))
			if line := detailLine(info); line != "" {
				d.Mailbox.Logf(bridge.SeverityInfo, "  %s", line)
			}
		})
	case KindSign:
		err := d.Ops.Sign(ctx, t.Path, t.PFXPath, t.Password, t.AddTimestamp, t.TimestampURL)
		d.record(res, t, err)
		emit(func(i int) {
			d.Mailbox.Logf(bridge.SeverityInfo, "[%d/%d] Sign: %s", i, n, name)
			d.emitOutcome(err)
		})
	case KindTimestamp:
		err := d.Ops.Timestamp(ctx, t.Path, t.TimestampURL)
		d.record(res, t, err)
		emit(func(i int) {
			d.Mailbox.Logf(bridge.SeverityInfo, "[%d/%d] Timestamp: %s", i, n, name)
			d.emitOutcome(err)
		})
	}
}

func (d *Dispatcher) record(res *BatchResult, t Task, err error) {
	if err != nil {
		res.addFailure(t.Path, err)
		return
	}
	res.addSuccess()
}

func (d *Dispatcher) emitOutcome(err error) {
	if err != nil {
		d.Mailbox.Logf(bridge.SeverityError, "  ✗ %v", err)
		return
	}
	d.Mailbox.Logf(bridge.SeveritySuccess, "  ✓ Done")
}

// summarize emits the aggregate lines for a finished batch: per-status
// counts for verify, success/failure totals otherwise.
func (d *Dispatcher) summarize(res *BatchResult) {
	res.mu.Lock()
	counts := make(map[signtool.Status]int, len(res.counts))
	for s, c := range res.counts {
		counts[s] = c
	}
	succeeded, failed := res.succeeded, res.failed
	res.mu.Unlock()

	if len(counts) > 0 {
		d.Mailbox.Logf(bridge.SeverityInfo, "Verification summary:")
		for _, s := range []signtool.Status{
			signtool.StatusTrusted,
			signtool.StatusSelfSigned,
			signtool.StatusUnsigned,
			signtool.StatusInvalid,
			signtool.StatusUnknown,
		} {
			if c := counts[s]; c > 0 {
				d.Mailbox.Logf(statusSeverity(s), "  %s: %d", statusLabel(s), c)
			}
		}
		return
	}
	sev := bridge.SeveritySuccess
	if failed > 0 {
		sev = bridge.SeverityWarn
	}
	d.Mailbox.Logf(sev, "Completed: %d succeeded, %d failed.", succeeded, failed)
}

func statusSeverity(s signtool.Status) bridge.Severity {
	switch s {
	case signtool.StatusTrusted:
		return bridge.SeveritySuccess
	case signtool.StatusSelfSigned:
		return bridge.SeverityWarn
	case signtool.StatusUnsigned, signtool.StatusInvalid:
		return bridge.SeverityError
	default:
		return bridge.SeverityInfo
	}
}

func statusLabel(s signtool.Status) string {
	switch s {
	case signtool.StatusTrusted:
		return "Trusted signature"
	case signtool.StatusSelfSigned:
		return "Self-signed certificate (not CA-issued)"
	case signtool.StatusUnsigned:
		return "Unsigned (no certificate present)"
	case signtool.StatusInvalid:
		return "Invalid signature or certificate error"
	default:
		return "Unknown status"
	}
}

func detailLine(info signtool.SignatureInfo) string {
	var parts []string
	if info.SignerName != "" {
		parts = append(parts, "Signer: "+info.SignerName)
	}
	if info.Issuer != "" {
		parts = append(parts, "Issuer: "+info.Issuer)
	}
	if info.Timestamp != "" {
		parts = append(parts, "Timestamp: "+info.Timestamp)
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " | " + p
	}
	return out
}
