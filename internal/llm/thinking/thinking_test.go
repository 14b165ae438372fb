package thinking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessContent_NoThinkingTags(t *testing.T) {
	response, reasoning := ProcessContent("just an answer")
	assert.Equal(t, "just an answer", response)
	assert.Empty(t, reasoning)
}

func TestProcessContent_BalancedBlock(t *testing.T) {
	response, reasoning := ProcessContent("<think>working it out</think>the answer")
	assert.Equal(t, "the answer", response)
	assert.Equal(t, "working it out", reasoning)
}

func TestProcessContent_MultipleBalancedBlocks(t *testing.T) {
	response, reasoning := ProcessContent("<think>step one</think>middle<think>step two</think>end")
	assert.Equal(t, "middleend", response)
	assert.Equal(t, "step one step two", reasoning)
}

func TestProcessContent_UnterminatedPreamble(t *testing.T) {
	response, reasoning := ProcessContent("reasoning without an opening tag</think>the answer")
	assert.Equal(t, "the answer", response)
	assert.Equal(t, "reasoning without an opening tag", reasoning)
}
