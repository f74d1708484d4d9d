package sandbox

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrForbidden marks a snippet rejected by the static policy check before
// anything was executed.
var ErrForbidden = errors.New("sandbox: forbidden operation")

// PolicyError reports which construct failed the pre-check.
type PolicyError struct {
	Violation string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("forbidden operation: %s", e.Violation)
}

func (e *PolicyError) Unwrap() error { return ErrForbidden }

// allowedImports is the module allow-list. Everything else is rejected up
// front; process isolation catches whatever slips past the scan.
var allowedImports = map[string]bool{
	"math":        true,
	"cmath":       true,
	"decimal":     true,
	"fractions":   true,
	"random":      true,
	"statistics":  true,
	"itertools":   true,
	"functools":   true,
	"collections": true,
	"heapq":       true,
	"bisect":      true,
	"string":      true,
	"re":          true,
	"textwrap":    true,
	"json":        true,
	"datetime":    true,
	"copy":        true,
	"typing":      true,
	"dataclasses": true,
	"enum":        true,
	"operator":    true,
	"array":       true,
}

// forbiddenCalls are constructs that defeat the interpreter-level fences
// regardless of which modules are importable.
var forbiddenCalls = []string{
	"open",
	"eval",
	"exec",
	"compile",
	"input",
	"breakpoint",
	"__import__",
	"globals",
	"vars",
	"getattr",
	"setattr",
	"delattr",
	"memoryview",
}

var (
	importRe        = regexp.MustCompile(`^\s*import\s+([A-Za-z_][\w.]*(?:\s*,\s*[A-Za-z_][\w.]*)*)`)
	fromImportRe    = regexp.MustCompile(`^\s*from\s+([A-Za-z_][\w.]*)\s+import\b`)
	forbiddenCallRe = buildForbiddenCallRe()
)

func buildForbiddenCallRe() *regexp.Regexp {
	escaped := make([]string, len(forbiddenCalls))
	for i, name := range forbiddenCalls {
		escaped[i] = regexp.QuoteMeta(name)
	}
	return regexp.MustCompile(`(?:^|[^\w.])(` + strings.Join(escaped, "|") + `)\s*\(`)
}

// CheckPolicy statically scans a snippet and rejects imports outside the
// allow-list and calls to fence-breaking builtins. It is a first line of
// defense: a plain-text scan, not a parser, so it errs toward rejection.
func CheckPolicy(code string) error {
	for _, line := range strings.Split(code, "\n") {
		if m := importRe.FindStringSubmatch(line); m != nil {
			for _, mod := range strings.Split(m[1], ",") {
				if err := checkImport(mod); err != nil {
					return err
				}
			}
		}
		if m := fromImportRe.FindStringSubmatch(line); m != nil {
			if err := checkImport(m[1]); err != nil {
				return err
			}
		}
		if m := forbiddenCallRe.FindStringSubmatch(line); m != nil {
			return &PolicyError{Violation: fmt.Sprintf("call to %s()", m[1])}
		}
		if strings.Contains(line, "__builtins__") || strings.Contains(line, "__subclasses__") {
			return &PolicyError{Violation: "access to interpreter internals"}
		}
	}
	return nil
}

func checkImport(mod string) error {
	mod = strings.TrimSpace(mod)
	// Only the top-level package decides admissibility.
	if dot := strings.IndexByte(mod, '.'); dot > 0 {
		mod = mod[:dot]
	}
	if !allowedImports[mod] {
		return &PolicyError{Violation: fmt.Sprintf("import of %s", mod)}
	}
	return nil
}
