package babylog

import "errors"

var (
	// ErrInvalidTransition is returned when a timer event is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid timer transition")

	// ErrBusy is returned when a vitamin toggle is attempted while another is in flight.
	ErrBusy = errors.New("another update is in progress")

	// ErrNotConfirmed is returned when a delete is requested without confirmation.
	ErrNotConfirmed = errors.New("deletion not confirmed")

	// ErrTemperatureRange is returned for readings outside [MinTemperature, MaxTemperature].
	ErrTemperatureRange = errors.New("temperature out of range")

	// ErrInvalidEventType is returned when an event type cannot be logged through the called operation.
	ErrInvalidEventType = errors.New("invalid event type")
)
