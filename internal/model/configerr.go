package model

import (
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrDetails flattens a CUE validation error into printable lines,
// one per offending path. Used by the CLI to report config problems.
func CueErrDetails(err error) []string {
	if err == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, e := range cueerrors.Errors(err) {
		line := e.Error()
		if path := normalizePath(e.Path()); path != "" {
			line = path + ": " + line
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if out == nil {
		out = []string{err.Error()}
	}
	return out
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// strip the leading #Config definition
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}
