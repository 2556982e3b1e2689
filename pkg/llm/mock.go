package llm

import "context"

// MockSummarizer is a Summarizer implementation for tests.
type MockSummarizer struct {
	// SummarizeFunc overrides the default behavior when set.
	SummarizeFunc func(ctx context.Context, prompt string) (string, error)

	// Calls records every prompt received.
	Calls []string
}

var _ Summarizer = (*MockSummarizer)(nil)

func (m *MockSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	m.Calls = append(m.Calls, prompt)
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, prompt)
	}
	return "mock narrative", nil
}
