// Package limiters enforces fixed-window rate limits on code issuance and
// verification calls using Redis counters. The windows are INCR+EXPIRE fixed
// windows, not rolling ones: a burst straddling a window edge can briefly
// exceed the caps. The caps are abuse-deterrence heuristics, not hard
// security boundaries, so that is accepted.
package limiters
