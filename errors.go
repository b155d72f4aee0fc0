package vkg

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Stage identifies the part of the frame loop an error originated from.
type Stage int

const (
	StageInit Stage = iota
	StageAcquire
	StageRecord
	StageSubmit
	StagePresent
	StageRebuild
	StagePipeline
	StageShutdown
)

var stageNames = [...]string{
	StageInit:     "init",
	StageAcquire:  "acquire",
	StageRecord:   "record",
	StageSubmit:   "submit",
	StagePresent:  "present",
	StageRebuild:  "rebuild",
	StagePipeline: "pipeline",
	StageShutdown: "shutdown",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrFatal marks errors the renderer cannot recover from. The frame loop must
// stop once an error carrying this mark has been returned.
var ErrFatal = errors.New("fatal renderer error")

// ErrDeviceLost marks errors caused by VK_ERROR_DEVICE_LOST.
var ErrDeviceLost = errors.New("device lost")

// FrameError carries the frame stage which produced an error.
type FrameError struct {
	Stage Stage
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Fatal wraps err in a FrameError for the given stage and marks it fatal.
// A nil err yields nil.
func Fatal(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(&FrameError{Stage: stage, Err: err}, ErrFatal)
}

// fatalAt is Fatal for errors not already marked fatal. Errors that already
// carry a stage keep it.
func fatalAt(stage Stage, err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return Fatal(stage, err)
}

// IsFatal reports whether err was produced by Fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Stage, true
	}
	return 0, false
}

// resultError converts a vulkan result code into an error, nil on success.
func resultError(res vk.Result) error {
	if res == vk.Success {
		return nil
	}
	cause := vk.Error(res)
	if cause == nil {
		cause = errors.Newf("unexpected vulkan result %d", int32(res))
	}
	err := errors.Wrapf(cause, "vulkan result %d", int32(res))
	if res == vk.ErrorDeviceLost {
		err = errors.Mark(err, ErrDeviceLost)
	}
	return err
}
