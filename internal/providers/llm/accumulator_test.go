package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorConcatenatesArgumentsInArrivalOrder(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.add(0, "query_manual", `{"a":`)
	acc.add(0, "", `1}`)

	calls := acc.finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "query_manual", calls[0].Name)
	assert.Equal(t, `{"a":1}`, string(calls[0].Arguments))

	var parsed map[string]int
	require.NoError(t, json.Unmarshal(calls[0].Arguments, &parsed))
	assert.Equal(t, map[string]int{"a": 1}, parsed)
}

func TestAccumulatorFirstNonEmptyNameWins(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.add(0, "", `{`)
	acc.add(0, "query_manual", `}`)
	acc.add(0, "other_name", "")

	calls := acc.finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "query_manual", calls[0].Name)
}

func TestAccumulatorInterleavedIndexes(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.add(1, "tool_b", `{"x":`)
	acc.add(0, "tool_a", `{"q":"re`)
	acc.add(1, "", `2}`)
	acc.add(0, "", `fund"}`)

	calls := acc.finalize()
	require.Len(t, calls, 2)
	assert.Equal(t, "tool_a", calls[0].Name)
	assert.Equal(t, `{"q":"refund"}`, string(calls[0].Arguments))
	assert.Equal(t, "tool_b", calls[1].Name)
	assert.Equal(t, `{"x":2}`, string(calls[1].Arguments))
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := newToolCallAccumulator()
	assert.True(t, acc.empty())
	assert.Empty(t, acc.finalize())
}
