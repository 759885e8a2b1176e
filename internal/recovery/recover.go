// Package recovery converts panics raised by user-supplied row accessors into
// ordinary results, so one bad field cannot take down a whole page.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverToError wraps a function call with panic recovery.
// If the function panics, the panic is logged and returned as an error.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "row metadata", func() error {
//	    meta, err = provider.RowMetadata(row)
//	    return err
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns zero value and error.
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)

			var zero T
			result = zero
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// OrZero runs fn and returns its value, or the zero value when fn fails or
// panics. Failures are logged at debug level only.
func OrZero[T any](logger *slog.Logger, operation string, fn func() (T, error)) T {
	v, err := RecoverToValue(logger, operation, fn)
	if err != nil {
		var zero T
		if logger != nil {
			logger.Debug("Value extraction failed",
				"operation", operation,
				"error", err,
			)
		}
		return zero
	}
	return v
}

func logPanic(logger *slog.Logger, operation string, r any) {
	if logger == nil {
		return
	}
	logger.Error("Panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
}
