// Package replay serves a recorded session log back through the backend
// contract.
//
// # Straight-Line Automaton
//
// A replay backend is an automaton with states S0..SN over a log of N
// entries. Every call is checked against the entry at the cursor:
//
//	S0 --entry 0--> S1 --entry 1--> S2 ... --entry N-1--> SN
//
// A call that matches the current entry returns the recorded response
// and advances one state. A call that does not match returns a
// MismatchError and stays put. There is no branching, no lookahead, and
// no backtracking: a session log is a script, and the program under
// test either follows it or hears about the first place it diverged.
//
// # Matching
//
// Write calls match write entries. Query and QueryRaw calls both match
// either query entry kind, since the raw accessor is an encoding choice,
// not a different conversation. Command text must be equal after
// whitespace trimming and Unicode normalization. Unlike the simulator,
// matching is case sensitive: replay verifies that the program sends
// what was recorded, not that an instrument would have accepted it.
//
// # End of Log
//
// In SN every call is a mismatch reporting exhaustion. Reaching SN is
// the success criterion for a verification run; Remaining exposes the
// distance to it.
package replay
