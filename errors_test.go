package vkg

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

func TestFatal(t *testing.T) {
	if Fatal(StageSubmit, nil) != nil {
		t.Error("Fatal(nil) is not nil")
	}

	err := errors.Wrap(Fatal(StagePresent, errInjected), "draw frame")
	if !IsFatal(err) {
		t.Error("wrapped fatal error lost its mark")
	}
	if stage, ok := StageOf(err); !ok || stage != StagePresent {
		t.Errorf("StageOf = %s, %v", stage, ok)
	}
	if !errors.Is(err, errInjected) {
		t.Error("cause lost")
	}

	if IsFatal(errInjected) {
		t.Error("plain error reported as fatal")
	}
	if _, ok := StageOf(errInjected); ok {
		t.Error("plain error has a stage")
	}
}

func TestStageString(t *testing.T) {
	if StageRebuild.String() != "rebuild" {
		t.Errorf("StageRebuild = %q", StageRebuild)
	}
	if Stage(42).String() != "stage(42)" {
		t.Errorf("Stage(42) = %q", Stage(42))
	}
}

func TestResultError(t *testing.T) {
	if resultError(vk.Success) != nil {
		t.Error("success produced an error")
	}
	if err := resultError(vk.ErrorDeviceLost); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("device lost not marked: %v", err)
	}
	if err := resultError(vk.ErrorOutOfHostMemory); err == nil || errors.Is(err, ErrDeviceLost) {
		t.Errorf("out of memory: %v", err)
	}
}
