// Package calendar answers "is this a trading session" for an exchange.
// The full holiday calendar lives in an external lookup service; this
// package defines the boundary and a weekday-only default good enough for
// freshness decisions.
package calendar

import "time"

// Calendar reports whether a date is a trading session for an exchange.
type Calendar interface {
	IsTradingDay(exchange string, date time.Time) bool
}

// Weekday treats Monday through Friday as trading days for every exchange.
type Weekday struct{}

func (Weekday) IsTradingDay(_ string, date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
