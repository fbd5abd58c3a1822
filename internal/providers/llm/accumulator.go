package llm

import (
	"encoding/json"
	"sort"
)

// toolCallAccumulator reassembles tool calls from index-keyed streaming
// deltas. The upstream may interleave fragments of several calls; each
// fragment carries the index assigned by the API, an optional name and an
// optional slice of the arguments JSON string.
type toolCallAccumulator struct {
	frags map[int]*toolCallFragment
}

type toolCallFragment struct {
	name string
	args []byte
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{frags: map[int]*toolCallFragment{}}
}

// add merges one delta. The first non-empty name wins; argument slices are
// appended in arrival order since each is a partial JSON string.
func (a *toolCallAccumulator) add(index int, name, args string) {
	f, ok := a.frags[index]
	if !ok {
		f = &toolCallFragment{}
		a.frags[index] = f
	}
	if f.name == "" && name != "" {
		f.name = name
	}
	if args != "" {
		f.args = append(f.args, args...)
	}
}

func (a *toolCallAccumulator) empty() bool { return len(a.frags) == 0 }

// finalize returns the assembled requests ordered by index.
func (a *toolCallAccumulator) finalize() []ToolCallRequest {
	idxs := make([]int, 0, len(a.frags))
	for i := range a.frags {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	calls := make([]ToolCallRequest, 0, len(idxs))
	for _, i := range idxs {
		f := a.frags[i]
		calls = append(calls, ToolCallRequest{
			Name:      f.name,
			Arguments: json.RawMessage(f.args),
		})
	}
	return calls
}
