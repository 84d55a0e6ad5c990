package chrono

import "time"

// API supplies wall clock time in the portal's timezone.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant, used by tests.
type FixedImpl struct {
	Time time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.Time
}

func (f FixedImpl) Location() *time.Location {
	return f.Time.Location()
}
