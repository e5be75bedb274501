package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓"
	SymbolFail     = "✗"
	SymbolPending  = "○" // connection parked, waiting for a password
	SymbolProgress = "◐" // async command running
	SymbolComplete = "●" // connected
)
