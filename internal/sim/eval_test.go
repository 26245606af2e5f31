package sim

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackend(state map[string]any) *Backend {
	rng := rand.New(rand.NewPCG(1, 1))
	return &Backend{state: state, rng: rng, funcs: evalFuncs(rng)}
}

func TestStateView_NestedKeys(t *testing.T) {
	view := stateView(map[string]any{
		"output.voltage": "5.0",
		"output.enabled": true,
		"mode":           "remote",
		"trig.count":     3,
	})

	output, ok := view["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 5.0, output["voltage"])
	assert.Equal(t, true, output["enabled"])
	assert.Equal(t, "remote", view["mode"])

	trig, ok := view["trig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, trig["count"])
}

func TestStateView_DeeperKeysWinCollisions(t *testing.T) {
	view := stateView(map[string]any{
		"output":         "1",
		"output.voltage": "2",
	})

	output, ok := view["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, output["voltage"])
}

func TestCoerceScalar(t *testing.T) {
	assert.Equal(t, 5.0, coerceScalar("5.0"))
	assert.Equal(t, -1.5, coerceScalar(" -1.5 "))
	assert.Equal(t, "remote", coerceScalar("remote"))
	assert.Equal(t, "", coerceScalar(""))
	assert.Equal(t, true, coerceScalar(true))
	assert.Equal(t, 7, coerceScalar(7))
}

func TestCompileProgram_UndefinedIdentifiersAllowed(t *testing.T) {
	_, err := compileProgram("state.volt + g1", false)
	assert.NoError(t, err)
}

func TestCompileProgram_SyntaxError(t *testing.T) {
	_, err := compileProgram("1 +", false)
	assert.Error(t, err)
}

func TestCompileProgram_ConditionMustBeBool(t *testing.T) {
	_, err := compileProgram("1 > 0", true)
	assert.NoError(t, err)

	_, err = compileProgram("1 + 1", true)
	assert.Error(t, err)
}

func TestRunProgram_StateAndCaptures(t *testing.T) {
	b := testBackend(map[string]any{"output.voltage": "5.0"})

	prog, err := compileProgram("state.output.voltage + g1", false)
	require.NoError(t, err)

	out, err := b.runProgram(prog, []string{"2.5"})
	require.NoError(t, err)
	assert.Equal(t, 7.5, out)
}

func TestRunProgram_ConditionOnCapture(t *testing.T) {
	b := testBackend(nil)

	prog, err := compileProgram("g1 > 10", true)
	require.NoError(t, err)

	out, err := b.runProgram(prog, []string{"15"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = b.runProgram(prog, []string{"5"})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestEvalFuncs_SeededDeterminism(t *testing.T) {
	fa := evalFuncs(rand.New(rand.NewPCG(42, 42)))
	fb := evalFuncs(rand.New(rand.NewPCG(42, 42)))

	ra := fa["random"].(func() float64)
	rb := fb["random"].(func() float64)
	for i := 0; i < 8; i++ {
		assert.Equal(t, rb(), ra())
	}
}

func TestEvalFuncs_RandintRange(t *testing.T) {
	funcs := evalFuncs(rand.New(rand.NewPCG(7, 7)))
	ri := funcs["randint"].(func(int, int) (int, error))

	for i := 0; i < 50; i++ {
		n, err := ri(1, 6)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 6)
	}

	_, err := ri(6, 1)
	assert.Error(t, err)
}

func TestVariance_Population(t *testing.T) {
	v, err := variance([]any{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, v, 1e-12)

	// Mixed representations coerce before computing.
	v, err = variance([]any{"1", 2, 3.0, "4"})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, v, 1e-12)

	_, err = variance([]any{})
	assert.Error(t, err)

	_, err = variance([]any{"remote"})
	assert.Error(t, err)
}

func TestStdev(t *testing.T) {
	s, err := stdev([]any{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(1.25), s, 1e-12)
}

func TestNum(t *testing.T) {
	f, err := num("5.0")
	require.NoError(t, err)
	assert.Equal(t, 5.0, f)

	_, err = num("remote")
	assert.Error(t, err)
}
