// Package exitcode lists the process exit codes of the launcher. Each fatal
// class has its own sentinel so a shell or service manager can tell them
// apart. Negative values appear as 256+code on POSIX systems.
package exitcode

const (
	OK         = 0
	Layout     = -1
	Config     = -2
	Init       = -3
	Import     = -4
	Diagnostic = -5
	Unhandled  = -6

	// NonNumericExit is used when a requested exit carries a payload that is
	// not an integer.
	NonNumericExit = -10
)
