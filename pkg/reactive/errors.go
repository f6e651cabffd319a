package reactive

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrNoSubscribers reports that there is no subscriber to publish to. No
// function in this package returns it; connectable.go's broadcast with no
// subscribers simply delivers nothing.
var ErrNoSubscribers = errors.New("reactive: no subscribers")

// protocolViolation aborts the process with a diagnostic identifying the
// caller's file and line, per §7 item 3. Every case this is invoked from is
// a programmer error: signals arriving in an order the handshake forbids.
func protocolViolation(msg string) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		panic("reactive: protocol violation: " + msg)
	}
	panic(fmt.Sprintf("reactive: protocol violation at %s:%d: %s", file, line, msg))
}

// requireNonZeroDemand enforces §3.1 / §7 item 4: request(0) is a
// programming error and must fail loudly.
func requireNonZeroDemand(d Demand) {
	if d.IsZero() {
		protocolViolation("Request called with zero demand")
	}
}

// RequireNonZeroDemand is requireNonZeroDemand exported for Subscription
// implementations defined outside this package (e.g. pkg/scheduler's cron
// source) that must enforce the same request(0) protocol invariant as every
// Subscription in this tree.
func RequireNonZeroDemand(d Demand) {
	if !d.IsZero() {
		return
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("reactive: protocol violation: Request called with zero demand")
	}
	panic(fmt.Sprintf("reactive: protocol violation at %s:%d: Request called with zero demand", file, line))
}
