// Package sim implements the rule-driven SCPI simulation engine.
//
// The simulator synthesizes an instrument's command surface from a
// declarative profile: exact command mappings, pattern rules with capture
// slots, stateful actions, sandboxed expressions, and error-queue rules.
//
// ARCHITECTURE:
//
// Compile Once, Dispatch Forever:
// A profile's raw shapes are resolved exactly once when New builds the
// dispatch table. Scalar responses classify as literal, template, or
// dynamic; action maps compile field by field; pattern keys and error
// patterns become anchored case-insensitive regexps; expression bodies
// become programs. Dispatch never re-inspects profile syntax.
//
// Dispatch Order:
// 1. Exact lookup on the canonical (NFC, trimmed, upper-cased) command.
// 2. Pattern rules in specificity order: fewer wildcards first, then
//    longer raw key, then lexicographic key. First full match wins and
//    binds its capture groups. The order is derived only from the keys,
//    so it is identical across loads.
// 3. Builtin fallbacks for commands no profile rule claimed: *IDN?
//    (identity), *CLS (clear error queue), *RST (reset state to
//    initial_state), SYST:ERR? (pop oldest error or +0,"No error").
//    A profile mapping one of these mnemonics overrides the builtin.
// 4. Anything else produces an empty response. The simulator does not
//    police the command surface; it synthesizes the parts the profile
//    describes.
//
// Within an action entry, mutators run before value producers (set, inc,
// dec, then response or get), so a value produced by the entry observes
// its own mutations. After the response is produced, every error rule
// whose pattern matches the command is evaluated against post-mutation
// state; matches append to the instrument error queue, never to the Go
// error return. Suspension comes last: the entry delay plus any
// caller-supplied delay are waited out together, immediately before the
// call returns, on a timer or context cancellation. Cancellation during
// the wait does not roll back applied mutations.
//
// Expressions:
// Dynamic responses ("eval: ..." scalars) and error-rule conditions run
// in a closed expression language with an allow-listed environment: the
// nested state view, captures g1..gn (numeric-coerced when parseable),
// and a fixed function table including seeded randomness. No file,
// network, process, or reflective capability is reachable. An expression
// failure is a SimulationError returned from the triggering call.
//
// CONCURRENCY:
//
// The simulator executes entirely on the caller's goroutine and carries
// no locks. At most one operation may be in flight per backend instance;
// a real instrument session is inherently serial. The configured timeout
// is bookkeeping and never aborts anything.
package sim
