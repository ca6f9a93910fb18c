package runner

import (
	"errors"
	"fmt"
)

// ErrNoFaceDetected is returned when the detector finds no usable face in an image.
var ErrNoFaceDetected = errors.New("no face detected")

// Pipeline stages reported in StageError.
const (
	StageDecode  = "decode"
	StageDetect  = "detect"
	StageAlign   = "align"
	StageExtract = "extract"
	StageStore   = "store"
)

// StageError records which pipeline stage failed for which file.
type StageError struct {
	Stage string
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}
