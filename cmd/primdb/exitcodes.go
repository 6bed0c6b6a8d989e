package main

// Exit codes for primdb commands.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (unknown table, runtime failure)
	ExitConfigError = 2 // Configuration error (bad config file, missing data directory)
	ExitDataError   = 3 // Data error (malformed command, validation failure)
)
