//go:build !unix

package dialer

// Outside unix the dial errno is not mapped; such failures reply with a
// general failure.
func classifyErrno(error) (Failure, bool) {
	return FailureOther, false
}
