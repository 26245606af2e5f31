package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/virtbench/virtbench/internal/backend"
	"github.com/virtbench/virtbench/internal/scpi"
)

// dispatch is the single execution path behind Write, Query, and
// QueryRaw: resolve the command, execute its entry, evaluate error rules
// against post-mutation state, then suspend last.
func (b *Backend) dispatch(ctx context.Context, op, cmd string, settings backend.CallSettings) (string, error) {
	normalized := scpi.Normalize(cmd)

	var response string
	delay := settings.Delay

	if e, captures, ok := b.tbl.lookup(normalized); ok {
		resp, err := b.execute(cmd, e, captures)
		if err != nil {
			return "", err
		}
		response = resp
		if e.kind == kindAction {
			delay += e.action.delay
		}
	} else {
		response = b.builtin(strings.ToUpper(normalized))
	}

	if err := b.applyErrorRules(cmd, normalized); err != nil {
		return "", err
	}

	// Suspension runs last: mutations and queued errors stay applied even
	// when the wait is cancelled.
	if err := backend.Wait(ctx, delay); err != nil {
		return "", err
	}

	b.log.Debug("command dispatched",
		"op", op,
		"command", normalized,
		"response", response,
		"errors_pending", b.queue.depth(),
	)
	return response, nil
}

// builtin handles the IEEE 488.2 fallbacks for commands no profile rule
// claimed. A leading colon is tolerated; scripts commonly send
// :SYST:ERR?. Unknown commands produce an empty response: the simulator
// does not police the command surface, it synthesizes the parts the
// profile describes.
func (b *Backend) builtin(canon string) string {
	switch strings.TrimPrefix(canon, ":") {
	case scpi.CmdIdentify:
		return b.identity
	case scpi.CmdClearStatus:
		b.queue.clear()
		return ""
	case scpi.CmdReset:
		b.state = cloneState(b.initial)
		return ""
	case scpi.CmdErrorQuery:
		return b.queue.pop()
	default:
		return ""
	}
}

// execute produces an entry's response.
func (b *Backend) execute(cmd string, e *entry, captures []string) (string, error) {
	switch e.kind {
	case kindLiteral:
		return e.literal, nil
	case kindTemplate:
		return substitute(e.template, captures), nil
	case kindDynamic:
		out, err := b.runProgram(e.program, captures)
		if err != nil {
			return "", &SimulationError{Command: cmd, Expr: e.source, Err: err}
		}
		return formatValue(out), nil
	case kindAction:
		return b.executeAction(cmd, e.action, captures)
	default:
		return "", &SimulationError{Command: cmd, Err: fmt.Errorf("unknown entry kind %d", e.kind)}
	}
}

// executeAction applies an action's fields in fixed order: set, inc, dec,
// then response or get. Mutators run first so the value produced in the
// same entry observes them. A response field wins over get when both are
// present.
func (b *Backend) executeAction(cmd string, a *action, captures []string) (string, error) {
	for key, raw := range a.set {
		if s, ok := raw.(string); ok {
			b.state[key] = substitute(s, captures)
			continue
		}
		b.state[key] = raw
	}
	for key, delta := range a.inc {
		b.state[key] = numericState(b.state[key]) + delta
	}
	for key, delta := range a.dec {
		b.state[key] = numericState(b.state[key]) - delta
	}

	if a.response != nil {
		return b.execute(cmd, a.response, captures)
	}
	if a.get != "" {
		return formatValue(b.state[a.get]), nil
	}
	return "", nil
}

// applyErrorRules evaluates every error rule whose pattern matches the
// command, with the rule's own captures and post-mutation state. Rules
// fire for matched, unmatched, and builtin commands alike.
func (b *Backend) applyErrorRules(cmd, normalized string) error {
	for _, rule := range b.tbl.errors {
		m := rule.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}

		if rule.condition != nil {
			out, err := b.runProgram(rule.condition, m[1:])
			if err != nil {
				return &SimulationError{Command: cmd, Expr: rule.condSrc, Err: err}
			}
			hold, ok := out.(bool)
			if !ok {
				return &SimulationError{Command: cmd, Expr: rule.condSrc, Err: fmt.Errorf("condition returned %T, want bool", out)}
			}
			if !hold {
				continue
			}
		}

		b.queue.push(rule.code, rule.message)
		b.log.Debug("error queued", "command", normalized, "code", rule.code, "message", rule.message)
	}
	return nil
}

// numericState coerces a state value for accumulation. Absent and
// non-numeric values count as zero.
func numericState(v any) float64 {
	if v == nil {
		return 0
	}
	f, err := toFloat(v)
	if err != nil {
		return 0
	}
	return f
}

// formatValue renders a state or expression value as response text.
// Strings pass through verbatim, floats use the shortest representation,
// booleans render as SCPI 0/1.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
