package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/virtbench/virtbench/internal/profile"
)

// loadProfile builds a typed profile from inline YAML, running the same
// schema validation the loader applies.
func loadProfile(t *testing.T, doc string) *profile.Profile {
	t.Helper()
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &tree))
	p, err := profile.Decode("test", tree)
	require.NoError(t, err)
	return p
}

func TestIsPatternKey(t *testing.T) {
	// *, ?, and ordinary punctuation never make a pattern.
	assert.False(t, isPatternKey("*IDN?"))
	assert.False(t, isPatternKey(":VOLT 5.0"))
	assert.False(t, isPatternKey(":MEAS:VOLT:DC?"))

	assert.True(t, isPatternKey(":VOLT $1"))
	assert.True(t, isPatternKey(":DISP:TEXT .+"))
	assert.True(t, isPatternKey(":SENS:.*"))
}

func TestCompilePattern_SlotMatchesOneToken(t *testing.T) {
	re, err := compilePattern(":VOLT $1")
	require.NoError(t, err)

	m := re.FindStringSubmatch(":VOLT 5.0")
	require.NotNil(t, m)
	assert.Equal(t, "5.0", m[1])

	// Case-insensitive, anchored, and a slot never spans whitespace.
	assert.NotNil(t, re.FindStringSubmatch(":volt 5.0"))
	assert.Nil(t, re.FindStringSubmatch(":VOLT 5.0 EXTRA"))
	assert.Nil(t, re.FindStringSubmatch("X:VOLT 5.0"))
}

func TestCompilePattern_StarAndQuestionAreLiteral(t *testing.T) {
	re, err := compilePattern("*SRE $1")
	require.NoError(t, err)
	assert.NotNil(t, re.FindStringSubmatch("*SRE 32"))

	re, err = compilePattern(":MEAS? $1")
	require.NoError(t, err)
	assert.NotNil(t, re.FindStringSubmatch(":MEAS? 1"))
	// The ? must be present literally, not act as a quantifier.
	assert.Nil(t, re.FindStringSubmatch(":MEA 1"))
	assert.Nil(t, re.FindStringSubmatch(":MEAS 1"))
}

func TestCompilePattern_WildcardCapturesRest(t *testing.T) {
	re, err := compilePattern(":DISP:TEXT .+")
	require.NoError(t, err)

	m := re.FindStringSubmatch(":DISP:TEXT hello world")
	require.NotNil(t, m)
	assert.Equal(t, "hello world", m[1])
}

func TestCompilePattern_MultipleSlots(t *testing.T) {
	re, err := compilePattern(":CONF:$1 $2,$3")
	require.NoError(t, err)

	m := re.FindStringSubmatch(":CONF:VOLT 10,0.001")
	require.NotNil(t, m)
	assert.Equal(t, []string{"VOLT", "10", "0.001"}, m[1:])
}

func TestSortRules_SpecificityOrder(t *testing.T) {
	mk := func(key string) *patternRule {
		re, err := compilePattern(key)
		require.NoError(t, err)
		return &patternRule{key: key, re: re, wildcards: re.NumSubexp()}
	}

	rules := []*patternRule{
		mk(":SOUR:.+"),
		mk(":VOLT $1 $2"),
		mk(":SOUR:VOLT $1"),
		mk(":SOUR:CURR $1"),
	}
	sortRules(rules)

	got := make([]string, len(rules))
	for i, r := range rules {
		got[i] = r.key
	}
	// Fewer wildcards first, then longer key, then lexicographic.
	assert.Equal(t, []string{
		":SOUR:CURR $1",
		":SOUR:VOLT $1",
		":SOUR:.+",
		":VOLT $1 $2",
	}, got)
}

func TestNewTable_ExactAndPatternSplit(t *testing.T) {
	p := loadProfile(t, `
scpi:
  "*IDN?": "ACME,VB-100,0,1.0"
  ":VOLT MAX": "30"
  ":VOLT $1":
    set:
      volt: "$1"
`)
	tbl, err := newTable(p)
	require.NoError(t, err)

	assert.Len(t, tbl.exact, 2)
	assert.Len(t, tbl.patterns, 1)

	// Exact lookup is canonical, so case differences still hit.
	e, captures, ok := tbl.lookup(":volt max")
	require.True(t, ok)
	assert.Nil(t, captures)
	assert.Equal(t, kindLiteral, e.kind)

	e, captures, ok = tbl.lookup(":VOLT 5.0")
	require.True(t, ok)
	assert.Equal(t, []string{"5.0"}, captures)
	assert.Equal(t, kindAction, e.kind)

	_, _, ok = tbl.lookup(":CURR?")
	assert.False(t, ok)
}

func TestNewTable_DuplicateCanonicalKeys(t *testing.T) {
	p := loadProfile(t, `
scpi:
  ":VOLT?": "1"
  ":volt?": "2"
`)
	_, err := newTable(p)
	pe, ok := profile.AsProfileError(err)
	require.True(t, ok)
	assert.Contains(t, pe.Error(), "collide")
}

func TestNewTable_BadResponseExpression(t *testing.T) {
	p := loadProfile(t, `
scpi:
  ":READ?": "eval: 1 +"
`)
	_, err := newTable(p)
	pe, ok := profile.AsProfileError(err)
	require.True(t, ok)
	assert.Contains(t, pe.Error(), ":READ?")
}

func TestNewTable_BadConditionExpression(t *testing.T) {
	p := loadProfile(t, `
errors:
  - pattern: ":VOLT $1"
    condition: "g1 >"
    code: -222
    message: "Data out of range"
`)
	_, err := newTable(p)
	pe, ok := profile.AsProfileError(err)
	require.True(t, ok)
	assert.Contains(t, pe.Error(), "errors[0]")
}

func TestSubstitute(t *testing.T) {
	captures := []string{"CH1", "POW"}
	assert.Equal(t, "POW on CH1", substitute("$2 on $1", captures))
	assert.Equal(t, "CH1", substitute("$1", captures))
	// A slot with no capture substitutes to the empty string.
	assert.Equal(t, "", substitute("$9", captures))
	assert.Equal(t, "no slots", substitute("no slots", captures))
}

func TestDescribe(t *testing.T) {
	p := loadProfile(t, `
scpi:
  "*IDN?": "ACME,VB-100,0,1.0"
  ":SOUR:VOLT $1":
    set:
      volt: "$1"
  ":SOUR:.+": ""
errors:
  - pattern: ":SOUR:VOLT $1"
    condition: "g1 > 30"
    code: -222
    message: "Data out of range"
`)
	info, err := Describe(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"*IDN?"}, info.ExactKeys)

	require.Len(t, info.Patterns, 2)
	assert.Equal(t, ":SOUR:VOLT $1", info.Patterns[0].Key)
	assert.Equal(t, ":SOUR:.+", info.Patterns[1].Key)
	assert.Equal(t, 1, info.Patterns[0].Wildcards)

	require.Len(t, info.Errors, 1)
	assert.Equal(t, -222, info.Errors[0].Code)
	assert.Equal(t, "g1 > 30", info.Errors[0].Condition)
}
