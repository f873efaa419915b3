package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts "now" so cadence decisions are testable with a fixed date.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func NewSystemClock() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
