package dispatch

import "time"

// SetTimingsForTest shortens the retry backoff and the post-transition
// confirmation wait so tests run fast.
func (d *Dispatcher) SetTimingsForTest(delay, confirm time.Duration) {
	d.idempotent.InitialDelay = delay
	d.idempotent.MaxDelay = delay
	d.mutating.InitialDelay = delay
	d.mutating.MaxDelay = delay
	d.confirmWait = confirm
}
