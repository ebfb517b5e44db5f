package domain

import "errors"

var (
	// ErrInvalidInput signals a request that can never succeed as given.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFileType signals a file extension with no registered extractor.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileNotFound signals a missing source file.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedProvider signals an AI provider name with no registered backend or config.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrProviderFailure signals a failed call to an AI provider.
	ErrProviderFailure = errors.New("ai provider error")
	// ErrEmptyResponse signals a syntactically valid but empty provider answer or embedding.
	ErrEmptyResponse = errors.New("empty provider response")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector signals a vector with zero magnitude or no components.
	ErrZeroVector = errors.New("vector has zero magnitude")
)

// Kind classifies an error for retry decisions.
type Kind int

const (
	// KindTransient failures may succeed on a later attempt.
	KindTransient Kind = iota
	// KindValidation failures are caused by the input and are never retried.
	KindValidation
	// KindFatal failures are caused by configuration and are never retried.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// KindOf classifies err. Unknown errors are transient.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnsupportedFileType),
		errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrZeroVector):
		return KindValidation
	case errors.Is(err, ErrUnsupportedProvider):
		return KindFatal
	default:
		return KindTransient
	}
}

// Retryable reports whether err is worth another attempt.
// Whether the caller gave up is decided by the caller's context, not by err.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindTransient
}
