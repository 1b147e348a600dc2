package client

import "time"

// Observer receives request and cache events. Implementations must be safe
// for concurrent use.
type Observer interface {
	// ObserveRequest is called once per upstream HTTP call. status is 0 when
	// the request failed before a response arrived.
	ObserveRequest(endpoint string, status int, d time.Duration)
	// ObserveCache is called for every entity cache lookup.
	ObserveCache(kind string, hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, int, time.Duration) {}
func (nopObserver) ObserveCache(string, bool)                 {}
