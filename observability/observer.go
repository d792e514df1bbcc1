// Package observability defines the metric events the exchange core emits.
// Implementations range from the no-op default to the Prometheus adapter in
// the prom subpackage.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Role labels which side of the exchange produced an event.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Result classifies how an exchange ended.
type Result string

const (
	ResultOK        Result = "ok"
	ResultProtocol  Result = "protocol_error"
	ResultTransport Result = "transport_error"
)

// ExchangeObserver receives exchange-level metric events.
type ExchangeObserver interface {
	ConnAccepted()
	Exchange(role Role, result Result, code string)
	ExchangeLatency(d time.Duration)
	PayloadBytes(n int)
}

type noopExchangeObserver struct{}

func (noopExchangeObserver) ConnAccepted()                 {}
func (noopExchangeObserver) Exchange(Role, Result, string) {}
func (noopExchangeObserver) ExchangeLatency(time.Duration) {}
func (noopExchangeObserver) PayloadBytes(int)              {}

// NoopExchangeObserver is a zero-cost observer used when metrics are disabled.
var NoopExchangeObserver ExchangeObserver = noopExchangeObserver{}

// AtomicExchangeObserver swaps its delegate at runtime.
type AtomicExchangeObserver struct {
	once sync.Once
	v    atomic.Value
}

type exchangeObserverHolder struct {
	obs ExchangeObserver
}

// NewAtomicExchangeObserver returns an initialized atomic observer.
func NewAtomicExchangeObserver() *AtomicExchangeObserver {
	a := &AtomicExchangeObserver{}
	a.init()
	return a
}

func (a *AtomicExchangeObserver) init() {
	a.once.Do(func() { a.v.Store(&exchangeObserverHolder{obs: NoopExchangeObserver}) })
}

// Set replaces the delegate; nil restores the no-op observer.
func (a *AtomicExchangeObserver) Set(obs ExchangeObserver) {
	a.init()
	if obs == nil {
		obs = NoopExchangeObserver
	}
	a.v.Store(&exchangeObserverHolder{obs: obs})
}

func (a *AtomicExchangeObserver) get() ExchangeObserver {
	a.init()
	return a.v.Load().(*exchangeObserverHolder).obs
}

func (a *AtomicExchangeObserver) ConnAccepted() { a.get().ConnAccepted() }

func (a *AtomicExchangeObserver) Exchange(role Role, result Result, code string) {
	a.get().Exchange(role, result, code)
}

func (a *AtomicExchangeObserver) ExchangeLatency(d time.Duration) { a.get().ExchangeLatency(d) }

func (a *AtomicExchangeObserver) PayloadBytes(n int) { a.get().PayloadBytes(n) }
