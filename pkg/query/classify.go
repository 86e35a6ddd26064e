package query

import (
	"strings"
)

// Classify decides whether a finished run succeeded.
//
// Any stderr text or a non-zero exit status is a RemoteToolFailure; stdout
// is then ignored. Otherwise stdout is the result.
func Classify(stdout, stderr string, exitStatus int) (RawOutput, error) {
	if exitStatus == 0 && strings.TrimSpace(stderr) == "" {
		return RawOutput(stdout), nil
	}

	return "", &ExecError{
		Kind:       RemoteToolFailure,
		Diagnostic: diagnostic(stderr),
		Raw:        stderr,
		ExitStatus: exitStatus,
	}
}

// diagnostic strips the tool's "Error: " label and the "in prepare, " stage
// prefix that newer sqlite3 releases print for SQL given as an argument.
func diagnostic(stderr string) string {
	msg := strings.TrimSpace(stderr)
	msg = strings.TrimPrefix(msg, "Error: ")
	msg = strings.TrimPrefix(msg, "in prepare, ")
	return strings.TrimSpace(msg)
}
