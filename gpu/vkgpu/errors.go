package vkgpu

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
)

// newError converts a Vulkan result. Suboptimal counts as success; out of date, device lost
// and missing extensions map to the gpu sentinels so callers can test for them with errors.Is.
func newError(ret vk.Result) error {
	switch ret {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	case vk.ErrorDeviceLost:
		return gpu.ErrDeviceLost
	case vk.ErrorExtensionNotPresent:
		return gpu.ErrExtensionNotPresent
	}
	return errors.Wrapf(vk.Error(ret), "vulkan error (%d)", ret)
}

// check is newError wrapped with the name of the failing call.
func check(ret vk.Result, call string) error {
	return errors.Wrap(newError(ret), call)
}
