package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// compileProgram compiles expression source for later evaluation against a
// per-call environment. Identifiers resolve at run time, so state keys and
// captures the compiler cannot see yet are fine. asBool marks error-rule
// conditions, which must produce a boolean.
func compileProgram(src string, asBool bool) (*vm.Program, error) {
	opts := []expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	}
	if asBool {
		opts = append(opts, expr.AsBool())
	}
	return expr.Compile(src, opts...)
}

// evalEnv assembles the environment one evaluation sees: the function
// table, the nested state view, and the captures g1..gn. The environment
// is rebuilt per call so an expression observes the state its own entry
// just mutated.
//
// The expression language is closed: nothing in this map reaches the
// filesystem, the network, or anything else with side effects.
func (b *Backend) evalEnv(captures []string) map[string]any {
	env := make(map[string]any, len(b.funcs)+1+len(captures))
	for k, v := range b.funcs {
		env[k] = v
	}
	env["state"] = stateView(b.state)
	for i, c := range captures {
		env[fmt.Sprintf("g%d", i+1)] = coerceScalar(c)
	}
	return env
}

// runProgram evaluates a compiled expression. The bool result contract is
// checked by the caller where one applies.
func (b *Backend) runProgram(prog *vm.Program, captures []string) (any, error) {
	return expr.Run(prog, b.evalEnv(captures))
}

// stateView builds the nested dot-addressable view expressions see: the
// flat key "output.voltage" surfaces as state.output.voltage. Values that
// look numeric are coerced to float64 so verbatim-stored strings
// participate in arithmetic; the flat store itself is untouched.
//
// Keys are processed in sorted order, so when a scalar key and a nested
// key collide ("output" next to "output.voltage") the deeper entries win
// deterministically.
func stateView(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	view := make(map[string]any, len(flat))
	for _, key := range keys {
		parts := strings.Split(key, ".")
		m := view
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = coerceScalar(flat[key])
	}
	return view
}

// coerceScalar turns numeric-looking strings into float64 for expression
// use. Everything else passes through.
func coerceScalar(v any) any {
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return v
}

// evalFuncs is the fixed function table available to profile expressions.
// abs, min, max, sum, mean, median, round, ceil, floor, and len come from
// the expression language itself; this table adds what it lacks. The
// random family draws from the backend's seeded source so a seeded
// simulator replays identically.
func evalFuncs(rng *rand.Rand) map[string]any {
	return map[string]any{
		"sqrt":  math.Sqrt,
		"pow":   math.Pow,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"log":   math.Log,
		"log10": math.Log10,
		"exp":   math.Exp,

		"random": func() float64 { return rng.Float64() },
		"randint": func(lo, hi int) (int, error) {
			if hi < lo {
				return 0, fmt.Errorf("randint: empty range [%d, %d]", lo, hi)
			}
			return lo + rng.IntN(hi-lo+1), nil
		},
		"uniform": func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) },
		"gauss":   func(mu, sigma float64) float64 { return mu + rng.NormFloat64()*sigma },

		"stdev":    stdev,
		"variance": variance,

		"num":       num,
		"timestamp": func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// variance is the population variance of a list.
func variance(vals []any) (float64, error) {
	fs, err := toFloats(vals)
	if err != nil {
		return 0, fmt.Errorf("variance: %w", err)
	}
	if len(fs) == 0 {
		return 0, fmt.Errorf("variance: empty list")
	}
	var sum float64
	for _, f := range fs {
		sum += f
	}
	mean := sum / float64(len(fs))
	var acc float64
	for _, f := range fs {
		d := f - mean
		acc += d * d
	}
	return acc / float64(len(fs)), nil
}

func stdev(vals []any) (float64, error) {
	v, err := variance(vals)
	if err != nil {
		return 0, fmt.Errorf("stdev: %w", err)
	}
	return math.Sqrt(v), nil
}

// num coerces a value to float64, the explicit counterpart of the
// automatic capture coercion.
func num(v any) (float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("num: %w", err)
	}
	return f, nil
}

func toFloats(vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}
