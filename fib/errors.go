package fib

import "fmt"

// fatalError reports an invariant violation — corruption that, per BIRD's
// own fib_check/bug() convention, should abort rather than be returned as
// an ordinary error to a caller that has no reasonable way to recover.
type fatalError struct {
	msg string
}

func (e *fatalError) Error() string { return "fib: " + e.msg }

// fatalf logs the violation through the table's logger, then panics. It is
// reserved for conditions that indicate a broken invariant (a marked node
// with no predecessor, an address-type mismatch) rather than an ordinary
// runtime failure a caller could handle.
func (t *Table) fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.log().Error(msg)
	panic(&fatalError{msg: msg})
}
