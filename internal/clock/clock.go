// Package clock resolves the caller-facing time context of a call: local
// time in the business time zone, whether the night surcharge applies and
// which part of the day it is.
package clock

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DayPart selects the farewell used at the end of a call.
type DayPart string

const (
	Morning   DayPart = "mañana"
	Afternoon DayPart = "tarde"
	Night     DayPart = "noche"
)

// Fixed business hours. Night runs from NightStartHour to DayStartHour.
const (
	DayStartHour       = 8
	AfternoonStartHour = 14
	NightStartHour     = 22
)

// Context is computed once per call and never changes afterwards.
type Context struct {
	Now     time.Time
	IsNight bool
	DayPart DayPart
}

type Resolver struct {
	loc *time.Location
	now func() time.Time
}

func NewResolver(timeZone string) (*Resolver, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", timeZone, err)
	}
	return &Resolver{loc: loc, now: time.Now}, nil
}

// WithNow returns a copy of r that reads the current time from now.
func (r *Resolver) WithNow(now func() time.Time) *Resolver {
	cp := *r
	cp.now = now
	return &cp
}

func (r *Resolver) Resolve() Context {
	return At(r.now().In(r.loc))
}

// At classifies t using its own location.
func At(t time.Time) Context {
	h := t.Hour()
	ctx := Context{Now: t}
	switch {
	case h >= NightStartHour || h < DayStartHour:
		ctx.IsNight = true
		ctx.DayPart = Night
	case h >= AfternoonStartHour:
		ctx.DayPart = Afternoon
	default:
		ctx.DayPart = Morning
	}
	return ctx
}
