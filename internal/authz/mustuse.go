package authz

// Decision is an authorization outcome that cannot be silently discarded.
// Go has no compiler-enforced must-use attribute, so the enforcement here
// is structural: Decision has no exported boolean field, only Allowed() and
// Into(), and both mark the decision consumed. Nothing checks at compile
// or vet time that a returned Decision is inspected; Consumed() lets a test
// assert that it was.
type Decision struct {
	allowed  bool
	consumed bool
}

// NewDecision wraps a raw allow/deny outcome. Authorizer implementations
// construct Decision values; callers never do.
func NewDecision(allowed bool) Decision {
	return Decision{allowed: allowed}
}

// Allowed reports the decision and marks it consumed.
func (d *Decision) Allowed() bool {
	d.consumed = true
	return d.allowed
}

// Into unwraps the decision's boolean, for call sites that want the
// "into_inner" escape hatch explicitly rather than calling Allowed().
func (d *Decision) Into() bool {
	return d.Allowed()
}

// Consumed reports whether Allowed/Into has been called. A test can use
// this to assert that a Decision returned from a stubbed Authorizer was
// actually inspected by the code under test.
func (d Decision) Consumed() bool {
	return d.consumed
}
