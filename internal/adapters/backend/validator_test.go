package backend

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bnema/askdb/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBody struct {
	reader io.Reader
	read   int64
	calls  int
}

func (b *countingBody) Read(p []byte) (int, error) {
	b.calls++
	n, err := b.reader.Read(p)
	b.read += int64(n)
	return n, err
}

func (b *countingBody) Close() error { return nil }

type endlessJSON struct{}

func (endlessJSON) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = ' '
	}
	return len(p), nil
}

func newResponse(contentType string, contentLength int64, body io.ReadCloser) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		ContentLength: contentLength,
		Body:          body,
	}
}

func TestValidateRejectsDeclaredOversizeBeforeReading(t *testing.T) {
	t.Parallel()

	validator := NewValidator(10<<20, 5<<20, zerolog.Nop(), nil)
	body := &countingBody{reader: strings.NewReader(`{"message":{}}`)}

	payload, err := validator.Validate(newResponse("application/json", 11<<20, body))
	require.Error(t, err)
	assert.Nil(t, payload)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, ReasonTooLarge, validationErr.Reason)
	assert.Equal(t, int64(11<<20), validationErr.Size)
	assert.Zero(t, body.calls)
	assert.Zero(t, body.read)
}

func TestValidateAbortsUndeclaredOversizeMidStream(t *testing.T) {
	t.Parallel()

	const maxBytes = 4096
	validator := NewValidator(maxBytes, maxBytes/2, zerolog.Nop(), nil)
	body := &countingBody{reader: endlessJSON{}}

	_, err := validator.Validate(newResponse("application/json", -1, body))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, ReasonTooLarge, validationErr.Reason)
	assert.LessOrEqual(t, body.read, int64(maxBytes+1))
}

func TestValidateContentTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{name: "json", contentType: "application/json", body: `{"a":1}`},
		{name: "json with charset", contentType: "application/json; charset=utf-8", body: `{"a":1}`},
		{name: "structured suffix", contentType: "application/problem+json", body: `{"a":1}`},
		{name: "ndjson", contentType: "application/x-ndjson", body: "{\"a\":1}\n{\"b\":2}\n"},
		{name: "html", contentType: "text/html", body: `<html></html>`, wantErr: true},
		{name: "plain text", contentType: "text/plain", body: `{"a":1}`, wantErr: true},
		{name: "javascript", contentType: "application/javascript", body: `{}`, wantErr: true},
		{name: "missing", contentType: "", body: `{"a":1}`, wantErr: true},
		{name: "bare suffix", contentType: "application/+json", body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewValidator(1<<20, 1<<19, zerolog.Nop(), nil)
			payload, err := validator.Validate(newResponse(tt.contentType, int64(len(tt.body)), io.NopCloser(strings.NewReader(tt.body))))
			if tt.wantErr {
				var validationErr *ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, ReasonContentType, validationErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(payload))
		})
	}
}

func TestValidateRejectsMalformedBodies(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"message": {"content": "hi"`, ``, "{\"a\":1}\n{broken\n"} {
		contentType := "application/json"
		if strings.Contains(body, "\n") {
			contentType = "application/x-ndjson"
		}
		validator := NewValidator(1<<20, 1<<19, zerolog.Nop(), nil)

		_, err := validator.Validate(newResponse(contentType, int64(len(body)), io.NopCloser(strings.NewReader(body))))
		require.Error(t, err, body)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, ReasonMalformed, validationErr.Reason)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	}
}

func TestValidateLogsSoftLimit(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	validator := NewValidator(1024, 16, zerolog.New(&logs), nil)
	body := `{"message":{"content":"a fairly long answer"}}`

	payload, err := validator.Validate(newResponse("application/json", int64(len(body)), io.NopCloser(strings.NewReader(body))))
	require.NoError(t, err)
	assert.Equal(t, body, string(payload))
	assert.Contains(t, logs.String(), "large backend response accepted")
}

func TestNewValidatorKeepsWarnBelowMax(t *testing.T) {
	t.Parallel()

	validator := NewValidator(1024, 4096, zerolog.Nop(), nil)
	assert.Equal(t, int64(1024), validator.MaxBytes)
	assert.Equal(t, int64(1024), validator.WarnBytes)
}
