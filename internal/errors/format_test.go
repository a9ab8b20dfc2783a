package errors

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_Headline(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file 'config.yaml' not found", nil)

	result := FormatForCLI(err)
	assert.Contains(t, result, "file 'config.yaml' not found")
	assert.Contains(t, result, "[ERR_201_FILE_NOT_FOUND]")
}

func TestFormatForCLI_HintComesLast(t *testing.T) {
	err := New(ErrCodeIndexCorrupt, "index corrupt at /data/books", nil).
		WithSuggestion("rebuild the index with reload")

	result := strings.TrimSpace(FormatForCLI(err))
	lines := strings.Split(result, "\n")
	assert.Contains(t, lines[len(lines)-1], "hint: rebuild the index with reload")
}

func TestFormatForCLI_EnumeratesFailedShards(t *testing.T) {
	err := AllShardsFailedError(map[string]error{
		"bbbb": errors.New("search failed"),
		"aaaa": errors.New("load failed"),
	})

	result := FormatForCLI(err)
	aIdx := strings.Index(result, "shard aaaa: load failed")
	bIdx := strings.Index(result, "shard bbbb: search failed")
	require.GreaterOrEqual(t, aIdx, 0)
	require.GreaterOrEqual(t, bIdx, 0)
	assert.Less(t, aIdx, bIdx, "shards render in fingerprint order")
}

func TestFormatForCLI_Cause(t *testing.T) {
	err := New(ErrCodeInternal, "operation failed", errors.New("underlying error"))

	result := FormatForCLI(err)
	assert.Contains(t, result, "cause: underlying error")
}

func TestFormatForCLI_StandardError(t *testing.T) {
	result := FormatForCLI(errors.New("something went wrong"))
	assert.Equal(t, "Error: something went wrong", result)
}

func TestFormatForCLI_NilError(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForCLI_ShortFormat(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil)

	lines := strings.Split(strings.TrimSpace(FormatForCLI(err)), "\n")
	assert.LessOrEqual(t, len(lines), 5, "Should be concise")
}

func TestLogAttrs_RagError(t *testing.T) {
	err := ShardFailureError("aaaa", errors.New("disk gone"))

	attrs := LogAttrs(err)
	byKey := map[string]slog.Attr{}
	for _, a := range attrs {
		byKey[a.Key] = a
	}

	require.Contains(t, byKey, "error_code")
	assert.Equal(t, ErrCodeShardFailure, byKey["error_code"].Value.String())
	assert.Equal(t, string(CategoryRetrieval), byKey["category"].Value.String())
	assert.Equal(t, "disk gone", byKey["cause"].Value.String())
	assert.Contains(t, byKey, "details")
}

func TestLogAttrs_StandardError(t *testing.T) {
	attrs := LogAttrs(errors.New("plain"))
	require.Len(t, attrs, 1)
	assert.Equal(t, "error", attrs[0].Key)
}

func TestLogAttrs_Nil(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"source unavailable", SourceUnavailable("/x", nil), http.StatusNotFound},
		{"validation", ValidationError("bad input", nil), http.StatusBadRequest},
		{"empty query", New(ErrCodeQueryEmpty, "empty", nil), http.StatusBadRequest},
		{"shard timeout", ShardTimeoutError("aaaa"), http.StatusGatewayTimeout},
		{"index corrupt", IndexCorruptError("/x", nil), http.StatusInternalServerError},
		{"plain error", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
