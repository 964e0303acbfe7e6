package render

import "github.com/pkg/errors"

var (
	// ErrNoSuitableDevice means no physical device supports the swapchain and the configured
	// device extensions with a queue family capable of graphics and presentation to the
	// surface.
	ErrNoSuitableDevice = errors.New("render: no suitable device")

	// ErrZeroExtent is returned instead of creating a swapchain with a zero width or height.
	ErrZeroExtent = errors.New("render: zero swapchain extent")

	// ErrMissingShader means a SPIR-V file required at startup could not be read.
	ErrMissingShader = errors.New("render: missing shader")

	// ErrInvalidShader means shader bytecode is not a SPIR-V module.
	ErrInvalidShader = errors.New("render: invalid SPIR-V")

	// ErrInvalidMesh is returned by RegisterMesh for meshes without vertices or indices, or
	// with indices out of range.
	ErrInvalidMesh = errors.New("render: invalid mesh")

	// ErrWindowsAlive is returned by Context.Destroy while windows are still open.
	ErrWindowsAlive = errors.New("render: context destroyed with open windows")

	// ErrNoMemoryType means no memory type satisfies an allocation.
	ErrNoMemoryType = errors.New("render: no suitable memory type")

	// ErrStarted is returned when a window is started twice.
	ErrStarted = errors.New("render: render loop already started")
)
