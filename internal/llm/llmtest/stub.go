// Package llmtest provides a scripted llm.Caller for tests.
package llmtest

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/docminer/internal/llm"
)

// Reply is a scripted model answer.
type Reply struct {
	Text  string
	Err   error
	Panic any
}

type rule struct {
	match string
	reply Reply
}

// Stub answers prompts from a list of substring rules, first match wins.
type Stub struct {
	mu       sync.Mutex
	rules    []rule
	fallback Reply
	prompts  []string

	// MinLatency and MaxLatency bound a random delay applied to each call.
	MinLatency time.Duration
	MaxLatency time.Duration

	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

var _ llm.Caller = (*Stub)(nil)

// NewStub returns a stub that answers unmatched prompts with fallback.
func NewStub(fallback Reply) *Stub {
	return &Stub{fallback: fallback}
}

// On registers reply for prompts containing match.
func (s *Stub) On(match string, reply Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{match: match, reply: reply})
	return s
}

// OnText is On with a text reply.
func (s *Stub) OnText(match, text string) *Stub {
	return s.On(match, Reply{Text: text})
}

// OnError is On with an error reply.
func (s *Stub) OnError(match string, err error) *Stub {
	return s.On(match, Reply{Err: err})
}

func (s *Stub) Call(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	reply := s.fallback
	for _, r := range s.rules {
		if strings.Contains(prompt, r.match) {
			reply = r.reply
			break
		}
	}
	s.mu.Unlock()

	if d := s.latency(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if reply.Panic != nil {
		panic(reply.Panic)
	}
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Text, nil
}

func (s *Stub) latency() time.Duration {
	if s.MaxLatency <= s.MinLatency {
		return s.MinLatency
	}
	return s.MinLatency + time.Duration(rand.Int64N(int64(s.MaxLatency-s.MinLatency)))
}

// Calls is the number of Call invocations.
func (s *Stub) Calls() int { return int(s.calls.Load()) }

// MaxInFlight is the highest number of concurrent calls observed.
func (s *Stub) MaxInFlight() int { return int(s.peak.Load()) }

// Prompts returns the prompts received so far.
func (s *Stub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
