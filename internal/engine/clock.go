package engine

import "time"

// Clock supplies the engine's notion of "now". Every due-date computation
// goes through it, which is what makes lifecycle behavior reproducible in
// tests (see testutil.FixedClock).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the production clock: wall time in UTC.
func SystemClock() Clock { return systemClock{} }
