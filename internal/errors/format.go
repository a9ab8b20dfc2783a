package errors

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// FormatForCLI renders an error for terminal display: a one-line headline,
// the failed shards when the error carries them, the cause chain, and the
// remedy hint last so it is the final thing an operator reads.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	re, ok := err.(*RagError)
	if !ok {
		return "Error: " + err.Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s [%s]\n", re.Message, re.Code)

	for _, fp := range shardDetails(re) {
		fmt.Fprintf(&sb, "  shard %s: %s\n", fp, re.Details["shard_"+fp])
	}
	if cause := re.Unwrap(); cause != nil {
		fmt.Fprintf(&sb, "  cause: %s\n", cause.Error())
	}
	if re.Suggestion != "" {
		fmt.Fprintf(&sb, "  hint: %s\n", re.Suggestion)
	}

	return sb.String()
}

// shardDetails extracts the fingerprints of per-shard failure details, in
// stable order, from a composite shard error.
func shardDetails(re *RagError) []string {
	var fps []string
	for k := range re.Details {
		if fp, ok := strings.CutPrefix(k, "shard_"); ok {
			fps = append(fps, fp)
		}
	}
	sort.Strings(fps)
	return fps
}

// LogAttrs converts an error into slog attributes so service logs carry
// the code, category, and retrieval-specific details as structured fields
// rather than one flattened string.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	re, ok := err.(*RagError)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", re.Code),
		slog.String("category", string(re.Category)),
		slog.String("message", re.Message),
	}
	if re.Cause != nil {
		attrs = append(attrs, slog.String("cause", re.Cause.Error()))
	}
	if len(re.Details) > 0 {
		keys := make([]string, 0, len(re.Details))
		for k := range re.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		detail := make([]any, 0, len(keys))
		for _, k := range keys {
			detail = append(detail, slog.String(k, re.Details[k]))
		}
		attrs = append(attrs, slog.Group("details", detail...))
	}
	return attrs
}

// HTTPStatus maps the error taxonomy onto HTTP status codes for the query
// service's responses.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if GetCategory(err) == CategoryValidation {
		return http.StatusBadRequest
	}
	switch GetCode(err) {
	case ErrCodeSourceUnavailable, ErrCodeFileNotFound:
		return http.StatusNotFound
	case ErrCodeQueryEmpty, ErrCodeInvalidQuery, ErrCodeInvalidPath:
		return http.StatusBadRequest
	case ErrCodeShardTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
