package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall-clock reads so batch timestamps are testable.
type Clock interface {
	Now() time.Time
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
