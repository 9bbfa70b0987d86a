package app

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Un breaker per upstream: Closed -> (fails consecutivi) -> Open -> (openFor) -> HalfOpen.
// 4xx answers are the caller's fault and never trip it.
func newBreaker(name string, fails int, openFor, interval time.Duration) *gobreaker.CircuitBreaker {
	if fails < 1 {
		fails = 1
	}
	if openFor <= 0 {
		openFor = 10 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code >= 400 && se.Code < 500
			}
			return err == nil
		},
	})
}
