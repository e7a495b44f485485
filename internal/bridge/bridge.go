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

// Package bridge carries events from worker goroutines to the single
// goroutine that owns the interactive front end. Workers only post; the
// front end drains. Every event is fire-and-forget except PromptPassword,
// which blocks the posting worker until the front end answers.
package bridge

import (
	"fmt"
	"sync"
)

// Severity of a Log event.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarn
	SeverityError
)

// Event is one tagged mailbox message. Consumers must ignore kinds they do
// not recognize.
type Event interface {
	event()
}

// Log is one display line.
type Log struct {
	Text     string
	Severity Severity
}

// ProgressSet resets the progress indicator.
type ProgressSet struct {
	Done  int
	Total int
}

// ProgressStep advances the progress indicator by N completed tasks.
type ProgressStep struct {
	N int
}

// EnableControls signals that a batch has finished and the front end may
// accept new work.
type EnableControls struct{}

// PromptPassword asks the front end for a credential password. The posting
// worker blocks until Respond is called. A nil answer means the user
// declined.
type PromptPassword struct {
	Title string

	reply chan *string
}

func (Log) event()             {}
func (ProgressSet) event()     {}
func (ProgressStep) event()    {}
func (EnableControls) event()  {}
func (*PromptPassword) event() {}

// Respond delivers the prompt answer and releases the waiting worker.
// Call exactly once, from the consuming goroutine.
func (p *PromptPassword) Respond(answer *string) {
	p.reply <- answer
}

// Mailbox is a FIFO multi-producer/single-consumer event queue. Posting
// never blocks; the queue is unbounded.
type Mailbox struct {
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
}

func New() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Post enqueues an event.
func (m *Mailbox) Post(e Event) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Drain removes and returns all queued events in posting order.
func (m *Mailbox) Drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// Wake is signalled when the mailbox transitions from possibly-empty to
// non-empty. The consumer should pair it with Drain in a select loop.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}

// Logf posts a formatted Log event.
func (m *Mailbox) Logf(sev Severity, format string, args ...any) {
	m.Post(Log{Text: fmt.Sprintf(format, args...), Severity: sev})
}

// SetProgress posts a ProgressSet event.
func (m *Mailbox) SetProgress(done, total int) {
	m.Post(ProgressSet{Done: done, Total: total})
}

// Step posts a single-unit ProgressStep event.
func (m *Mailbox) Step() {
	m.Post(ProgressStep{N: 1})
}

// AskPassword posts a PromptPassword event and blocks until the front end
// responds. There is no timeout; declining the prompt is the only escape.
func (m *Mailbox) AskPassword(title string) *string {
	p := &PromptPassword{Title: title, reply: make(chan *string, 1)}
	m.Post(p)
	return <-p.reply
}
