package lightengine

import "errors"

// ErrExclusive is returned when an operation is rejected because another
// sender currently holds exclusivity on the target (light, property).
var ErrExclusive = errors.New("lightengine: property held exclusively by another sender")

// ErrUnknownLight is returned for operations against an unconfigured light.
var ErrUnknownLight = errors.New("lightengine: unknown light")

// ErrUnknownFunction is returned for operations against a function the
// light's type does not define.
var ErrUnknownFunction = errors.New("lightengine: unknown function")

// ErrMissingDuration is returned when creating an effect without a
// positive duration.
var ErrMissingDuration = errors.New("lightengine: effect requires a positive duration")
