package models

import (
	"errors"
	"fmt"
)

// ErrNoMarketData is returned when a calibrator is given an empty option basket.
var ErrNoMarketData = errors.New("no market option quotes supplied")

// PreconditionError reports an invalid parameter detected before any
// computation starts. Invalid ranges are never silently clamped.
type PreconditionError struct {
	Param  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// CalibrationError reports that an optimizer failed to reach a stable result.
// It carries the last best point and its residual so the caller can decide to
// retry, widen bounds, or fall back to a previous parameter set.
type CalibrationError struct {
	Model    string
	Best     []float64
	Residual float64
	Err      error
}

func (e *CalibrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s calibration failed: %v (best residual %g)", e.Model, e.Err, e.Residual)
	}
	return fmt.Sprintf("%s calibration failed to converge (best residual %g)", e.Model, e.Residual)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// NumericalError reports an integration or evaluation that produced a
// non-finite result, surfaced instead of a silent zero.
type NumericalError struct {
	Op     string
	Detail string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}
