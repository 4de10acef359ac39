// Package clock provides the timer implementations behind ports.Clock:
// Real for production and Fake for deterministic tests.
package clock
