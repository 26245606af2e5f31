package sim

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr/vm"

	"github.com/virtbench/virtbench/internal/profile"
	"github.com/virtbench/virtbench/internal/scpi"
)

// entryKind discriminates the compiled response variants.
type entryKind int

const (
	kindLiteral entryKind = iota
	kindTemplate
	kindDynamic
	kindAction
)

// entry is one compiled response. The raw profile shapes are resolved
// here once, at table build, and never re-inspected during dispatch.
type entry struct {
	kind entryKind

	literal  string      // kindLiteral
	template string      // kindTemplate, with $n slots
	program  *vm.Program // kindDynamic
	source   string      // kindDynamic, original expression text

	action *action // kindAction
}

// action is the compiled long form. The response field compiles to a
// nested scalar entry.
type action struct {
	delay    time.Duration
	set      map[string]any
	inc      map[string]float64
	dec      map[string]float64
	get      string
	response *entry
}

// patternRule is one compiled pattern key with its specificity inputs.
type patternRule struct {
	key       string // raw profile key
	re        *regexp.Regexp
	wildcards int
	entry     *entry
}

// errorRule is one compiled errors entry. A nil condition always holds.
type errorRule struct {
	pattern   string
	re        *regexp.Regexp
	condition *vm.Program
	condSrc   string
	code      int
	message   string
}

// table is the complete dispatch surface compiled from one profile.
type table struct {
	exact    map[string]*entry
	patterns []*patternRule
	errors   []*errorRule
}

// slotRe matches the $n capture slots of pattern keys and templates.
var slotRe = regexp.MustCompile(`\$(\d+)`)

// newTable compiles a profile's scpi and errors sections. Keys are
// processed in sorted order so a broken profile reports the same first
// error on every load.
func newTable(p *profile.Profile) (*table, error) {
	t := &table{exact: make(map[string]*entry, len(p.SCPI))}

	keys := make([]string, 0, len(p.SCPI))
	for k := range p.SCPI {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		e, err := compileEntry(p.SCPI[key])
		if err != nil {
			return nil, &profile.ProfileError{Profile: p.Name, Detail: fmt.Sprintf("scpi key %q", key), Err: err}
		}

		if !isPatternKey(key) {
			canon := scpi.Canonical(key)
			if _, dup := t.exact[canon]; dup {
				return nil, &profile.ProfileError{Profile: p.Name, Detail: fmt.Sprintf("scpi keys collide on canonical form %q", canon)}
			}
			t.exact[canon] = e
			continue
		}

		re, err := compilePattern(key)
		if err != nil {
			return nil, &profile.ProfileError{Profile: p.Name, Detail: fmt.Sprintf("scpi key %q", key), Err: err}
		}
		t.patterns = append(t.patterns, &patternRule{
			key:       key,
			re:        re,
			wildcards: re.NumSubexp(),
			entry:     e,
		})
	}

	sortRules(t.patterns)

	for i, raw := range p.Errors {
		er, err := compileErrorRule(raw)
		if err != nil {
			return nil, &profile.ProfileError{Profile: p.Name, Detail: fmt.Sprintf("errors[%d]", i), Err: err}
		}
		t.errors = append(t.errors, er)
	}

	return t, nil
}

// lookup resolves a normalized command. Exact matches outrank every
// pattern rule; pattern rules apply in specificity order, first full
// match wins.
func (t *table) lookup(normalized string) (*entry, []string, bool) {
	if e, ok := t.exact[strings.ToUpper(normalized)]; ok {
		return e, nil, true
	}
	for _, rule := range t.patterns {
		if m := rule.re.FindStringSubmatch(normalized); m != nil {
			return rule.entry, m[1:], true
		}
	}
	return nil, nil, false
}

// sortRules orders pattern rules most-specific first: fewer wildcards,
// then longer raw key, then lexicographic key. The order depends only on
// the keys, so it is identical across loads of the same profile.
func sortRules(rules []*patternRule) {
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.wildcards != b.wildcards {
			return a.wildcards < b.wildcards
		}
		if len(a.key) != len(b.key) {
			return len(a.key) > len(b.key)
		}
		return a.key < b.key
	})
}

// isPatternKey reports whether a scpi key is a pattern. Only the marker
// sequences count: $n slots and the .* / .+ wildcards. The *, ?, and
// punctuation of ordinary SCPI text ("*IDN?", ":VOLT 5.0") never make a
// key a pattern.
func isPatternKey(key string) bool {
	return slotRe.MatchString(key) || strings.Contains(key, ".*") || strings.Contains(key, ".+")
}

// compilePattern turns a pattern into an anchored, case-insensitive
// regexp. $n slots match one whitespace-free token; .* and .+ pass
// through as wildcards. Both become numbered capture groups in order of
// appearance. All other text is literal.
func compilePattern(key string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	for i := 0; i < len(key); {
		switch {
		case key[i] == '$' && i+1 < len(key) && isDigit(key[i+1]):
			j := i + 1
			for j < len(key) && isDigit(key[j]) {
				j++
			}
			b.WriteString(`(\S+)`)
			i = j
		case strings.HasPrefix(key[i:], ".*"):
			b.WriteString(`(.*)`)
			i += 2
		case strings.HasPrefix(key[i:], ".+"):
			b.WriteString(`(.+)`)
			i += 2
		default:
			r, size := utf8.DecodeRuneInString(key[i:])
			b.WriteString(regexp.QuoteMeta(string(r)))
			i += size
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", key, err)
	}
	return re, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// compileEntry resolves a raw response into its compiled form.
func compileEntry(resp profile.Response) (*entry, error) {
	if resp.Scalar != nil {
		return compileScalar(*resp.Scalar)
	}
	if resp.Action == nil {
		return &entry{kind: kindLiteral}, nil
	}

	a := &action{
		delay: time.Duration(resp.Action.Delay),
		set:   resp.Action.Set,
		inc:   resp.Action.Inc,
		dec:   resp.Action.Dec,
		get:   resp.Action.Get,
	}
	if resp.Action.Response != "" {
		nested, err := compileScalar(resp.Action.Response)
		if err != nil {
			return nil, err
		}
		a.response = nested
	}
	return &entry{kind: kindAction, action: a}, nil
}

// compileScalar classifies scalar response text: the eval: marker makes
// it dynamic, a $n slot makes it a template, anything else is literal.
func compileScalar(s string) (*entry, error) {
	if rest, ok := strings.CutPrefix(s, "eval:"); ok {
		src := strings.TrimSpace(rest)
		prog, err := compileProgram(src, false)
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", src, err)
		}
		return &entry{kind: kindDynamic, program: prog, source: src}, nil
	}
	if slotRe.MatchString(s) {
		return &entry{kind: kindTemplate, template: s}, nil
	}
	return &entry{kind: kindLiteral, literal: s}, nil
}

func compileErrorRule(raw profile.ErrorRule) (*errorRule, error) {
	re, err := compilePattern(raw.Pattern)
	if err != nil {
		return nil, err
	}
	er := &errorRule{pattern: raw.Pattern, re: re, code: raw.Code, message: raw.Message}

	if cond := strings.TrimSpace(raw.Condition); cond != "" {
		prog, err := compileProgram(cond, true)
		if err != nil {
			return nil, fmt.Errorf("compile condition %q: %w", cond, err)
		}
		er.condition = prog
		er.condSrc = cond
	}
	return er, nil
}

// substitute replaces $n slots with their captures. A slot with no
// corresponding capture substitutes to the empty string.
func substitute(tmpl string, captures []string) string {
	return slotRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		if n >= 1 && n <= len(captures) {
			return captures[n-1]
		}
		return ""
	})
}

// TableInfo is a human-inspectable summary of a compiled dispatch table,
// produced for the compile command.
type TableInfo struct {
	ExactKeys []string      `json:"exact_keys"`
	Patterns  []PatternInfo `json:"patterns"`
	Errors    []ErrorInfo   `json:"errors"`
}

// PatternInfo describes one pattern rule in match order.
type PatternInfo struct {
	Key       string `json:"key"`
	Regex     string `json:"regex"`
	Wildcards int    `json:"wildcards"`
}

// ErrorInfo describes one error rule in evaluation order.
type ErrorInfo struct {
	Pattern   string `json:"pattern"`
	Condition string `json:"condition,omitempty"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// Describe compiles a profile and reports the resulting dispatch surface:
// exact keys sorted, pattern rules in the order they will be tried, error
// rules in evaluation order.
func Describe(p *profile.Profile) (*TableInfo, error) {
	tbl, err := newTable(p)
	if err != nil {
		return nil, err
	}

	info := &TableInfo{}
	for canon := range tbl.exact {
		info.ExactKeys = append(info.ExactKeys, canon)
	}
	sort.Strings(info.ExactKeys)

	for _, rule := range tbl.patterns {
		info.Patterns = append(info.Patterns, PatternInfo{
			Key:       rule.key,
			Regex:     rule.re.String(),
			Wildcards: rule.wildcards,
		})
	}
	for _, rule := range tbl.errors {
		info.Errors = append(info.Errors, ErrorInfo{
			Pattern:   rule.pattern,
			Condition: rule.condSrc,
			Code:      rule.code,
			Message:   rule.message,
		})
	}
	return info, nil
}
