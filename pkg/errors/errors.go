// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes follow "area.op.reason"; the last segment drives classification.
type Code string

const (
	CodeStoreEntityNotFound       Code = "store.entity.get.not_found"
	CodeStoreRelationNotFound     Code = "store.relation.get.not_found"
	CodeStoreObservationNotFound  Code = "store.observation.get.not_found"
	CodeStoreEntityInvalidInput   Code = "store.entity.validate.invalid_input"
	CodeStoreRelationInvalidInput Code = "store.relation.validate.invalid_input"
	CodeStoreObservationInvalid   Code = "store.observation.validate.invalid_input"
	CodeStoreInvalidInput         Code = "store.invalid_input"
	CodeStoreIntegrityViolation   Code = "store.integrity.violation"
	CodeStoreBackendUnavailable   Code = "store.backend.unavailable"
	CodeStoreBackendUnsupported   Code = "store.backend.unsupported"
	CodeStoreDatabaseFailure      Code = "store.database.failure"

	CodeRequestCanceled Code = "request.context.canceled"
	CodeRequestTimeout  Code = "request.context.timeout"

	CodeCacheBackendDegraded Code = "cache.backend.degraded"
	CodeCacheConfigInvalid   Code = "cache.config.invalid"

	CodeSearchQueryInvalid Code = "search.query.invalid_input"

	CodeEmbeddingConfigInvalid   Code = "embedding.config.invalid"
	CodeEmbeddingResponseInvalid Code = "embedding.response.invalid"
	CodeEmbeddingUpstreamFailure Code = "embedding.upstream.failure"

	CodeMaintenanceSnapshotInvalid Code = "maintenance.snapshot.invalid_format"
	CodeMaintenanceIOFailure       Code = "maintenance.io.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretResolveFailure Code = "secrets.resolve.failure"
	CodeSecretNotFound       Code = "secrets.keyring.not_found"
	CodeSecretInvalidInput   Code = "secrets.input.invalid"
	CodeSecretKeyringFailure Code = "secrets.keyring.failure"

	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldEntityID(id int64) Attr {
	return Field("entity_id", id)
}

func FieldRelationID(id int64) Attr {
	return Field("relation_id", id)
}

func FieldObservationID(id int64) Attr {
	return Field("observation_id", id)
}

func FieldCacheKey(key string) Attr {
	return Field("cache_key", key)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, keeping its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsIntegrity reports a referential integrity violation.
func IsIntegrity(err error) bool {
	return reason(CodeOf(err)) == "violation"
}

// IsUnavailable reports that the backing store cannot be reached or read.
func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

func IsDegraded(err error) bool {
	return reason(CodeOf(err)) == "degraded"
}

// IsCanceled reports that the caller gave up on the operation.
func IsCanceled(err error) bool {
	return reason(CodeOf(err)) == "canceled"
}

// IsTimeout reports that the operation ran out of time.
func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

// FromContext codes a context error as canceled or timed out.
func FromContext(err error, msg string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeRequestTimeout, msg)
	}
	return Wrap(err, CodeRequestCanceled, msg)
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// StatusClientClosedRequest is the non-standard status for a request the
// client abandoned.
const StatusClientClosedRequest = 499

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsIntegrity(err):
		return http.StatusConflict
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsCanceled(err):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeServerInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
