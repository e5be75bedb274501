// Package ui renders console output for the terminal: styled records,
// the prompt, the startup header and aligned tables.
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Successful operations
//	ColorError     (red)    - Failures and error records
//	ColorWarning   (yellow) - Warnings
//	ColorInfo      (cyan)   - Prompt and headings
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - Remote identity in the prompt
//
// Use DisableColors() to switch to monochrome output (for --no-color).
//
// # Printer
//
// Printer is an output.Sink that writes to an io.Writer. Error records are
// prefixed with SymbolFail and styled red; fragments from a remote shell
// are written untouched.
package ui
