package errors

import (
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI renders err for the terminal: the message, an optional hint
// and the error code. Plain errors are reported as internal.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se := asSearchError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	if se.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", se.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", se.Code)
	return sb.String()
}

// LogAttr returns err as a single slog attribute named "error". Structured
// errors become a group carrying code, category and retryability so log
// queries can filter on them.
func LogAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	var se *SearchError
	if !As(err, &se) {
		return slog.String("error", err.Error())
	}

	attrs := []any{
		slog.String("code", se.Code),
		slog.String("message", se.Message),
		slog.String("category", string(se.Category)),
		slog.Bool("retryable", se.Retryable),
	}
	if se.Cause != nil {
		attrs = append(attrs, slog.String("cause", se.Cause.Error()))
	}
	for k, v := range se.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return slog.Group("error", attrs...)
}

func asSearchError(err error) *SearchError {
	var se *SearchError
	if As(err, &se) {
		return se
	}
	return Wrap(ErrCodeInternal, err)
}
