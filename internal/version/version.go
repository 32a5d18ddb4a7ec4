// Package version contains information on the current version of the program.
// It is split from the main program for easy use.
package version

// Current is the string representing the current version of fiberhost.
const Current = "0.1.0"

// DaemonCurrent identifies the fiberhostd bridge daemon build, reported
// from both the --version flag and the /api/v1/info endpoint.
const DaemonCurrent = "fiberhostd/0.1.0"
