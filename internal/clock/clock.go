package clock

import (
	"time"
)

// Clock is the source of current time for components that reason about expiry
type Clock interface {
	Now() time.Time
}

type system struct{}

func (system) Now() time.Time { return time.Now() }

// System returns wall clock time
var System Clock = system{}

// Func allows to use a function as clock, handy in tests
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
