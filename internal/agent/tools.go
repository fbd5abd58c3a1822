package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mgagent/companion/internal/providers/llm"
	"github.com/mgagent/companion/internal/utils"
)

// ToolFunc executes one tool call with the model-supplied arguments.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Dispatcher maps declared tool names to callables and runs a batch of tool
// call requests, joining results with newlines in request order.
type Dispatcher struct {
	specs []llm.ToolSpec
	funcs map[string]ToolFunc

	// IsolateFailures controls what a failing known tool does to the batch:
	// false (default) fails the whole batch, true logs and drops that call.
	IsolateFailures bool

	log *logrus.Logger
}

func NewDispatcher(log *logrus.Logger) *Dispatcher {
	return &Dispatcher{funcs: make(map[string]ToolFunc), log: log}
}

func (d *Dispatcher) Register(spec llm.ToolSpec, fn ToolFunc) {
	d.specs = append(d.specs, spec)
	d.funcs[spec.Name] = fn
}

func (d *Dispatcher) Specs() []llm.ToolSpec { return d.specs }

// Invoke runs every request in order. Unknown tool names are skipped, not
// failed: the model occasionally hallucinates names and a turn should
// survive that.
func (d *Dispatcher) Invoke(ctx context.Context, calls []llm.ToolCallRequest) (string, error) {
	const op = "Dispatcher.Invoke"

	var results []string
	for _, call := range calls {
		fn, ok := d.funcs[call.Name]
		if !ok {
			d.log.WithField("tool", call.Name).Warn("skipping unknown tool")
			continue
		}

		args := map[string]any{}
		if len(call.Arguments) > 0 {
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				if d.IsolateFailures {
					d.log.WithField("tool", call.Name).WithError(err).Warn("bad tool arguments, call dropped")
					continue
				}
				return "", utils.E(utils.CodeToolExec, op, "invalid tool arguments for "+call.Name, err)
			}
		}

		out, err := fn(ctx, args)
		if err != nil {
			if d.IsolateFailures {
				d.log.WithField("tool", call.Name).WithError(err).Warn("tool failed, call dropped")
				continue
			}
			return "", utils.E(utils.CodeToolExec, op, "tool "+call.Name+" failed", err)
		}
		results = append(results, out)
	}

	return strings.Join(results, "\n"), nil
}
