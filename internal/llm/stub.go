package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/normalize"
)

// StubReply is one scripted answer. A positive Delay holds the call until
// it elapses or the context ends, which is how tests simulate timeouts.
type StubReply struct {
	Err   error
	Text  string
	Delay time.Duration
}

// StubClient is a deterministic Client. Scripted vendors replay their
// replies in order, repeating the last; everything else is answered from a
// keyword table.
type StubClient struct {
	scripts map[string][]StubReply
	calls   map[string]int
	mu      sync.Mutex
}

// NewStubClient creates a stub with no scripts.
func NewStubClient() *StubClient {
	return &StubClient{
		scripts: make(map[string][]StubReply),
		calls:   make(map[string]int),
	}
}

// Script sets the replies for vendor.
func (s *StubClient) Script(vendor string, replies ...StubReply) *StubClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[vendor] = replies
	return s
}

// Calls returns how many times vendor was classified.
func (s *StubClient) Calls(vendor string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[vendor]
}

// TotalCalls returns the number of calls across all vendors.
func (s *StubClient) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Classify answers req without any network access.
func (s *StubClient) Classify(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	n := s.calls[req.Vendor]
	s.calls[req.Vendor] = n + 1
	replies, scripted := s.scripts[req.Vendor]
	s.mu.Unlock()

	if !scripted || len(replies) == 0 {
		return Response{Text: keywordAnswer(req.Vendor), Model: ProviderStub}, nil
	}

	reply := replies[len(replies)-1]
	if n < len(replies) {
		reply = replies[n]
	}

	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}
	if reply.Err != nil {
		return Response{}, reply.Err
	}
	return Response{Text: reply.Text, Model: ProviderStub}, nil
}

var stubKeywords = []struct {
	tier  model.Tier
	words []string
}{
	{tier: model.Tier0, words: []string{"bar", "pub", "club", "lounge", "tavern", "theater", "theatre", "uber", "lyft", "golf", "bowling"}},
	{tier: model.Tier50, words: []string{"restaurant", "cafe", "coffee", "pizza", "grill", "kitchen", "bistro", "deli", "catering", "doordash", "grubhub", "sushi", "bakery"}},
}

// StubJSON renders a response in the classification contract.
func StubJSON(tier model.Tier, reason, confidence string) string {
	out, _ := json.Marshal(map[string]any{
		"business_type":  "",
		"classification": tier.Label(),
		"deduction_rate": int(tier),
		"reason":         reason,
		"confidence":     confidence,
	})
	return string(out)
}

func keywordAnswer(vendor string) string {
	for _, group := range stubKeywords {
		if word, ok := normalize.ContainsAnyPhrase(vendor, group.words); ok {
			return StubJSON(group.tier, "name contains "+strings.ToUpper(word), "medium")
		}
	}
	return StubJSON(model.Tier0, "no recognizable indicator; defaulting to entertainment", "low")
}
