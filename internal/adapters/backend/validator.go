package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DefaultMaxResponseBytes  int64 = 10 << 20
	DefaultWarnResponseBytes int64 = 5 << 20

	ReasonContentType = "content_type"
	ReasonTooLarge    = "too_large"
	ReasonMalformed   = "malformed"
	ReasonRead        = "read"
)

var DefaultAllowedTypes = []string{
	"application/json",
	"application/x-ndjson",
	"application/*+json",
}

type ValidationError struct {
	Reason      string
	ContentType string
	Size        int64
	Err         error
}

func (e *ValidationError) Error() string {
	msg := "response rejected: " + e.Reason
	if e.ContentType != "" {
		msg += fmt.Sprintf(" (content type %q)", e.ContentType)
	}
	if e.Size > 0 {
		msg += fmt.Sprintf(" (%d bytes)", e.Size)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) ErrorKind() domain.ErrorKind {
	return domain.KindValidation
}

// Validator decides whether a raw backend response can be trusted before any
// of it is decoded.
type Validator struct {
	MaxBytes     int64
	WarnBytes    int64
	AllowedTypes []string
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

func NewValidator(maxBytes int64, warnBytes int64, logger zerolog.Logger, m *metrics.Metrics) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	if warnBytes <= 0 || warnBytes > maxBytes {
		warnBytes = min(DefaultWarnResponseBytes, maxBytes)
	}
	return &Validator{
		MaxBytes:     maxBytes,
		WarnBytes:    warnBytes,
		AllowedTypes: DefaultAllowedTypes,
		Logger:       logger,
		Metrics:      m,
	}
}

// Validate checks the content type and size limits of resp and returns the
// body once it is known to be well-formed JSON (or NDJSON). Oversized bodies
// are rejected from the declared length before any byte is read, or mid-stream
// as soon as the cap is crossed.
func (v *Validator) Validate(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, v.reject(&ValidationError{Reason: ReasonRead, Err: errors.New("response has no body")})
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, ok := v.allowedMediaType(contentType)
	if !ok {
		return nil, v.reject(&ValidationError{Reason: ReasonContentType, ContentType: contentType})
	}

	if resp.ContentLength > v.MaxBytes {
		return nil, v.reject(&ValidationError{Reason: ReasonTooLarge, ContentType: mediaType, Size: resp.ContentLength})
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	read, err := buf.ReadFrom(io.LimitReader(resp.Body, v.MaxBytes+1))
	if read > v.MaxBytes {
		return nil, v.reject(&ValidationError{Reason: ReasonTooLarge, ContentType: mediaType, Size: read})
	}
	if err != nil {
		return nil, v.reject(&ValidationError{Reason: ReasonRead, ContentType: mediaType, Size: read, Err: err})
	}

	if read > v.WarnBytes {
		v.Logger.Warn().
			Int64("size", read).
			Int64("warn_bytes", v.WarnBytes).
			Str("content_type", mediaType).
			Msg("large backend response accepted")
	}

	body := buf.Bytes()
	if !wellFormed(body, mediaType) {
		return nil, v.reject(&ValidationError{Reason: ReasonMalformed, ContentType: mediaType, Size: read})
	}

	v.Metrics.RecordResponseBytes(read)
	return body, nil
}

func (v *Validator) reject(err *ValidationError) error {
	v.Metrics.RecordValidationRejection(err.Reason)
	event := v.Logger.Warn().
		Str("reason", err.Reason).
		Str("content_type", err.ContentType).
		Int64("size", err.Size)
	if err.Err != nil {
		event = event.Err(err.Err)
	}
	event.Msg("backend response rejected")
	return err
}

func (v *Validator) allowedMediaType(contentType string) (string, bool) {
	if strings.TrimSpace(contentType) == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}

	allowed := v.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	for _, pattern := range allowed {
		if matchMediaType(pattern, mediaType) {
			return mediaType, true
		}
	}
	return mediaType, false
}

// matchMediaType supports exact types and the structured-suffix form
// "application/*+json".
func matchMediaType(pattern string, mediaType string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == mediaType {
		return true
	}
	star := strings.Index(pattern, "*")
	if star < 0 {
		return false
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if !strings.HasPrefix(mediaType, prefix) || !strings.HasSuffix(mediaType, suffix) {
		return false
	}
	return len(mediaType) > len(prefix)+len(suffix)
}

func wellFormed(body []byte, mediaType string) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return false
	}
	if mediaType != "application/x-ndjson" {
		return gjson.ValidBytes(body)
	}

	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return false
		}
	}
	return true
}
