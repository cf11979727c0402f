package evaluation

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens for per-step usage accounting.
type TokenCounter interface {
	Count(text string) int
}

// NewTokenCounter returns a cl100k_base tiktoken counter, falling back to a
// character-based estimator when the encoding cannot be loaded (e.g. no
// network access for the BPE download).
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return estimateCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// estimateCounter approximates tokens at four characters per token.
type estimateCounter struct{}

func (estimateCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
