package api

import "sync"

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int

	// USD per million tokens.
	inputRate  float64
	outputRate float64
}

// NewTokenTracker creates a tracker priced at Claude Sonnet rates.
func NewTokenTracker() *TokenTracker {
	return NewTokenTrackerWithRates(3.0, 15.0)
}

// NewTokenTrackerWithRates creates a tracker with per-million-token prices.
func NewTokenTrackerWithRates(inputPerM, outputPerM float64) *TokenTracker {
	return &TokenTracker{inputRate: inputPerM, outputRate: outputPerM}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}

// Cost estimates the spend in USD. Prices are approximate.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	inputCost := float64(t.inputTok) / 1_000_000 * t.inputRate
	outputCost := float64(t.outputTok) / 1_000_000 * t.outputRate
	return inputCost + outputCost
}
