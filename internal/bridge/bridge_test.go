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

package bridge

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMailboxOrder(t *testing.T) {
	m := New()
	m.Logf(SeverityInfo, "first")
	m.SetProgress(0, 3)
	m.Step()
	m.Post(EnableControls{})

	want := []Event{
		Log{Text: "first", Severity: SeverityInfo},
		ProgressSet{Done: 0, Total: 3},
		ProgressStep{N: 1},
		EnableControls{},
	}
	if diff := cmp.Diff(want, m.Drain()); diff != "" {
		t.Error(diff)
	}
	if got := m.Drain(); len(got) != 0 {
		t.Errorf("second drain returned %d events, want 0", len(got))
	}
}

func TestMailboxWake(t *testing.T) {
	m := New()
	select {
	case <-m.Wake():
		t.Fatal("wake fired before any post")
	default:
	}

	m.Logf(SeverityInfo, "hello")
	select {
	case <-m.Wake():
	default:
		t.Fatal("wake did not fire after post")
	}
}

func TestAskPasswordRendezvous(t *testing.T) {
	m := New()

	var got *string
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		got = m.AskPassword("Enter PFX password (key.pfx):")
	}()

	// Consumer side: wait for the prompt, then answer.
	<-m.Wake()
	events := m.Drain()
	if len(events) != 1 {
		t.Fatalf("drained %d events, want 1", len(events))
	}
	p, ok := events[0].(*PromptPassword)
	if !ok {
		t.Fatalf("event type %T, want *PromptPassword", events[0])
	}
	if p.Title != "Enter PFX password (key.pfx):" {
		t.Errorf("title = %q", p.Title)
	}
	answer := "hunter2"
	p.Respond(&answer)
	wg.Wait()

	if got == nil || *got != "hunter2" {
		t.Errorf("worker received %v, want hunter2", got)
	}
}

func TestAskPasswordDecline(t *testing.T) {
	m := New()

	done := make(chan *string, 1)
	go func() {
		done <- m.AskPassword("pw")
	}()

	<-m.Wake()
	events := m.Drain()
	events[0].(*PromptPassword).Respond(nil)

	if got := <-done; got != nil {
		t.Errorf("declined prompt returned %q, want nil", *got)
	}
}

func TestConcurrentPosting(t *testing.T) {
	m := New()
	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				m.Step()
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, e := range m.Drain() {
		if s, ok := e.(ProgressStep); ok {
			total += s.N
		}
	}
	if total != producers*perProducer {
		t.Errorf("drained %d steps, want %d", total, producers*perProducer)
	}
}
