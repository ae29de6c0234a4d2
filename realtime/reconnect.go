package realtime

import "time"

// retryPolicy arms at most one fixed-delay reconnect at a time. maxAttempts of
// zero retries forever. It is not safe for concurrent use; owners guard it
// with their own mutex.
type retryPolicy struct {
	sched       Scheduler
	delay       time.Duration
	maxAttempts int

	attempts int
	pending  Timer
	token    uint64
}

func newRetryPolicy(sched Scheduler, delay time.Duration, maxAttempts int) *retryPolicy {
	if sched == nil {
		sched = systemScheduler{}
	}
	return &retryPolicy{sched: sched, delay: delay, maxAttempts: maxAttempts}
}

// schedule arms fire after the delay. It does nothing when a retry is already
// pending, and reports exhausted when a bounded budget is spent.
// fire receives a token that must be redeemed with take before acting.
func (p *retryPolicy) schedule(fire func(token uint64)) (scheduled, exhausted bool) {
	if p.pending != nil {
		return false, false
	}
	if p.maxAttempts > 0 && p.attempts >= p.maxAttempts {
		return false, true
	}
	p.attempts++
	p.token++
	token := p.token
	p.pending = p.sched.AfterFunc(p.delay, func() { fire(token) })
	return true, false
}

// take clears the pending timer if token is still the armed one. A false
// result means the retry was cancelled or superseded.
func (p *retryPolicy) take(token uint64) bool {
	if p.pending == nil || token != p.token {
		return false
	}
	p.pending = nil
	return true
}

func (p *retryPolicy) cancel() {
	if p.pending == nil {
		return
	}
	p.pending.Stop()
	p.pending = nil
	p.token++
}

func (p *retryPolicy) reset() {
	p.attempts = 0
}

func (p *retryPolicy) isPending() bool {
	return p.pending != nil
}
