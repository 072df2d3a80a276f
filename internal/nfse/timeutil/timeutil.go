package timeutil

import (
	"sync/atomic"
	"time"
	_ "time/tzdata"
)

const DefaultZone = "America/Sao_Paulo"

var location atomic.Pointer[time.Location]

func init() {
	location.Store(loadLocation(DefaultZone))
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, -3*60*60)
	}
	return loc
}

// SetLocation switches the municipal timezone used by Now.
func SetLocation(name string) error {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	location.Store(loc)
	return nil
}

// Now returns the current time in the municipal timezone.
func Now() time.Time {
	return time.Now().In(location.Load())
}

// In converts t to the municipal timezone.
func In(t time.Time) time.Time {
	return t.In(location.Load())
}

// Location returns the active municipal timezone.
func Location() *time.Location {
	return location.Load()
}
