package compile

// Classify splits console entries into errors and warnings, preserving the
// order they arrived in. Entries of any other kind are dropped. Stack traces
// are attached to errors only when includeStackTrace is set and the entry
// has one; warnings never carry them.
func Classify(entries []ConsoleEntry, includeStackTrace bool) DiagnosticReport {
	report := DiagnosticReport{
		Errors:   []Diagnostic{},
		Warnings: []Diagnostic{},
	}

	for _, e := range entries {
		switch e.Kind {
		case KindError:
			d := Diagnostic{
				Message: e.Message,
				File:    e.File,
				Line:    e.Line,
			}
			if includeStackTrace && e.StackTrace != "" {
				d.StackTrace = e.StackTrace
			}
			report.Errors = append(report.Errors, d)
		case KindWarning:
			report.Warnings = append(report.Warnings, Diagnostic{
				Message: e.Message,
				File:    e.File,
				Line:    e.Line,
			})
		}
	}

	return report
}
