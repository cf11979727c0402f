package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCounter_NonEmptyText(t *testing.T) {
	tc := NewTokenCounter()
	assert.Equal(t, 0, tc.Count(""))
	assert.Greater(t, tc.Count("Fund the quarterly community newsletter."), 0)
}

func TestEstimateCounter(t *testing.T) {
	tc := estimateCounter{}
	assert.Equal(t, 0, tc.Count(""))
	assert.Equal(t, 1, tc.Count("ab"), "short text rounds up to one token")
	assert.Equal(t, 10, tc.Count("0123456789012345678901234567890123456789"))
}
