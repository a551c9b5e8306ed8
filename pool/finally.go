package pool

// Finally runs op and then finalizer, exactly once, on every path out of op:
// a returned value, a returned error or a panic. The outcome of op is passed
// through untouched; a panic keeps unwinding after finalizer has run.
//
// Finally is how callers attach bookkeeping that must happen whatever the
// task did, such as marking one unit of progress complete.
func Finally[R any](op func() (R, error), finalizer func()) (R, error) {
	defer finalizer()
	return op()
}
