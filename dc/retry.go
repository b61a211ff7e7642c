package dc

// Retry runs fn up to maxAttempts times, matching spec §4.4.1/§7: a
// retryable failure (IO, Timeout, Protocol) is retried, with sleep called
// between attempts; anything else (including cancellation) is returned
// immediately without another attempt. It returns the last error if every
// attempt was exhausted.
//
// Grounded on the teacher's bt_wait_ctrl_bits bounded poll loop
// (bluetooth.go): a fixed iteration bound, a sleep between iterations, and
// a named timeout error when the bound is hit.
func Retry(ctx *Context, maxAttempts int, sleep func(attempt int), fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Cancelled() {
			return NewError("retry", KindCancelled, nil)
		}
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		kind := KindOf(err)
		if kind == KindCancelled || !kind.IsRetryable() {
			return err
		}
		if attempt < maxAttempts-1 && sleep != nil {
			sleep(attempt)
		}
	}
	return lastErr
}
