package observability_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cifranet/cifra/observability"
)

type countingObserver struct {
	accepted  int64
	exchanges int64
	bytes     int64
}

func (c *countingObserver) ConnAccepted() { atomic.AddInt64(&c.accepted, 1) }
func (c *countingObserver) Exchange(observability.Role, observability.Result, string) {
	atomic.AddInt64(&c.exchanges, 1)
}
func (c *countingObserver) ExchangeLatency(time.Duration) {}
func (c *countingObserver) PayloadBytes(n int)            { atomic.AddInt64(&c.bytes, int64(n)) }

func TestAtomicExchangeObserverSwap(t *testing.T) {
	observer := &observability.AtomicExchangeObserver{}
	observer.ConnAccepted() // no-op delegate, must not panic

	counting := &countingObserver{}
	observer.Set(counting)
	observer.ConnAccepted()
	observer.Exchange(observability.RoleInitiator, observability.ResultOK, "ok")
	observer.PayloadBytes(42)

	if got := atomic.LoadInt64(&counting.accepted); got != 1 {
		t.Fatalf("unexpected accepted count: %d", got)
	}
	if got := atomic.LoadInt64(&counting.exchanges); got != 1 {
		t.Fatalf("unexpected exchange count: %d", got)
	}
	if got := atomic.LoadInt64(&counting.bytes); got != 42 {
		t.Fatalf("unexpected payload bytes: %d", got)
	}

	observer.Set(nil)
	observer.ConnAccepted()
	if got := atomic.LoadInt64(&counting.accepted); got != 1 {
		t.Fatalf("delegate still wired after reset: %d", got)
	}
}
