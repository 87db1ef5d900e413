package model

import "github.com/rotisserie/eris"

// Sentinel errors for expected domain conditions. Callers match these with
// eris.Is; everything else is an unexpected failure.
var (
	// ErrProductNotFound indicates an id or name with no catalog match.
	ErrProductNotFound = eris.New("product not found")

	// ErrInsufficientStock indicates a decrement beyond on-hand quantity.
	ErrInsufficientStock = eris.New("insufficient stock")
)
