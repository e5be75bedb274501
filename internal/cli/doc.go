// Package cli implements the rterm command-line interface.
//
// The root command runs the interactive console: it loads config, builds
// the session, dispatcher and console, then reads one line at a time and
// hands it to the console. Everything typed at the rterm> prompt is a
// console command, not a Cobra subcommand.
//
// # Command Structure
//
//	rterm               - Start the interactive console
//	rterm init          - Create .rterm.yaml
//	rterm doctor        - Check config and local SSH setup
//	rterm version       - Print version information
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color) live on the root command.
// --verbose raises the log level to debug; logs go to log.file and never
// to the terminal.
//
// # The Read Loop
//
// The loop waits for a command's output to be rendered before printing
// the next prompt. Ctrl-C cancels the running command, or is sent to the
// remote shell while input is being forwarded. A bare ssh-login prompts
// for the password without echo when stdin is a terminal.
package cli
