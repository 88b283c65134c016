package tui

import "errors"

// ErrMissingControl is returned when the control surface is not provided.
var ErrMissingControl = errors.New("tui: control surface is required")
