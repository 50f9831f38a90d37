package journal

import "time"

// DayClock is the single authority for "what day is it" and where a day's
// boundaries fall. The calendar basis is the injected location; call sites
// never consult the system clock or a timezone directly.
type DayClock struct {
	location *time.Location
	now      func() time.Time
}

// NewDayClock constructs a DayClock for the provided location. A nil location
// defaults to UTC and a nil now func defaults to time.Now.
func NewDayClock(location *time.Location, now func() time.Time) DayClock {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return DayClock{location: location, now: now}
}

// Today returns the current calendar date in the clock's location.
func (c DayClock) Today() Date {
	return Date(c.now().In(c.location).Format(dateLayout))
}

// Bounds returns the first instant of the date and the first instant of the
// following date, both in the clock's location. Callers filter with
// start <= t < next, so 23:59:59 of the date is inside and 00:00:00 of the
// next date is not.
func (c DayClock) Bounds(date Date) (time.Time, time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, date.String(), c.location)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	start := parsed
	next := start.AddDate(0, 0, 1)
	return start, next, nil
}

// Now exposes the clock's current instant for timestamping rows.
func (c DayClock) Now() time.Time {
	return c.now()
}
