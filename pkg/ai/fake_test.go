package ai

import (
	"context"
	"encoding/json"
	"sync"
)

// fakeClient answers structured requests with a canned JSON reply.
type fakeClient struct {
	mu      sync.Mutex
	reply   string
	err     error
	tokens  int
	calls   int
	prompts []string
	block   bool
	metrics ModelMetrics
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	f.metrics.Add(ModelMetrics{TotalTokens: f.tokens})
	return UnmarshalFlexible(f.reply, out)
}

func (f *fakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, string(input))
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeClient) LoadModel(ctx context.Context, opts ...GenerateOption) error { return nil }

func (f *fakeClient) ResetMetrics() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = ModelMetrics{}
}

func (f *fakeClient) GetMetrics() ModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
