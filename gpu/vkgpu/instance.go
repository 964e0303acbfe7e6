// Package vkgpu implements the gpu interfaces on top of github.com/vulkan-go/vulkan.
//
// The Vulkan loader must be initialized before NewInstance is called, either by the
// window system (see package wsi) or with vk.SetDefaultGetInstanceProcAddr and vk.Init.
package vkgpu

import (
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
)

// Config selects what the instance is created with.
type Config struct {
	AppName    string
	AppVersion uint32
	EngineName string
	// APIVersion is a packed Vulkan version, see vk.MakeVersion.
	APIVersion uint32
	// RequiredExtensions must all be supported, such as the surface extensions of the
	// window system. NewInstance fails otherwise.
	RequiredExtensions []string
	// Layers and Extensions are optional; the ones the loader lacks are skipped with a
	// warning.
	Layers     []string
	Extensions []string
	// Debug installs a debug report callback that forwards validation messages to Logger.
	Debug  bool
	Logger *slog.Logger
}

// Instance is a Vulkan instance. It implements gpu.Instance.
type Instance struct {
	inst   vk.Instance
	log    *slog.Logger
	layers []string
	debug  vk.DebugReportCallback

	physical []gpu.PhysicalDevice
	objs     *handles
}

var _ gpu.Instance = (*Instance)(nil)

// DebugReportExtension is requested in addition to Config.Extensions when Config.Debug is set.
const DebugReportExtension = "VK_EXT_debug_report"

// debugLog receives messages from the debug report callback, which has no user context.
var debugLog atomic.Pointer[slog.Logger]

// NewInstance creates the Vulkan instance and enumerates its physical devices.
func NewInstance(cfg Config) (*Instance, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.APIVersion == 0 {
		cfg.APIVersion = uint32(vk.MakeVersion(1, 0, 0))
	}

	actualExtensions, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	if names := missingNames(actualExtensions, cfg.RequiredExtensions); len(names) > 0 {
		return nil, errors.Wrapf(gpu.ErrExtensionNotPresent, "vulkan: instance extensions %v", names)
	}
	optional := append([]string(nil), cfg.Extensions...)
	if cfg.Debug {
		optional = append(optional, DebugReportExtension)
	}
	extensions, _ := checkExisting(actualExtensions, safeStrings(cfg.RequiredExtensions))
	optionalExtensions, missing := checkExisting(actualExtensions, safeStrings(optional))
	if missing > 0 {
		log.Warn("vulkan: missing requested instance extensions", "missing", missing)
	}
	extensions = append(extensions, optionalExtensions...)
	var layers []string
	if len(cfg.Layers) > 0 {
		actualLayers, err := ValidationLayers()
		if err != nil {
			return nil, err
		}
		layers, missing = checkExisting(actualLayers, safeStrings(cfg.Layers))
		if missing > 0 {
			log.Warn("vulkan: missing requested layers", "missing", missing)
		}
	}
	log.Debug("vulkan: enabling instance extensions", "extensions", len(extensions), "layers", len(layers))

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         cfg.APIVersion,
			ApplicationVersion: cfg.AppVersion,
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        safeString(cfg.EngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := check(ret, "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, errors.Wrap(err, "load instance functions")
	}
	i := &Instance{inst: instance, log: log, layers: layers, objs: newHandles()}

	if cfg.Debug {
		debugLog.Store(log)
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}, nil, &i.debug)
		if err := check(ret, "vkCreateDebugReportCallback"); err != nil {
			log.Warn("vulkan: debug report callback unavailable", "err", err)
		} else {
			log.Debug("vulkan: debug report callback enabled")
		}
	}

	var count uint32
	ret = vk.EnumeratePhysicalDevices(instance, &count, nil)
	if err := check(ret, "vkEnumeratePhysicalDevices"); err != nil {
		i.Destroy()
		return nil, err
	}
	pds := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, pds)
	if err := check(ret, "vkEnumeratePhysicalDevices"); err != nil {
		i.Destroy()
		return nil, err
	}
	for _, pd := range pds[:count] {
		i.physical = append(i.physical, gpu.PhysicalDevice(i.objs.add(pd)))
	}
	return i, nil
}

// Handle returns the native instance, for creating window surfaces.
func (i *Instance) Handle() vk.Instance {
	return i.inst
}

// AddSurface takes ownership of a native surface created against this instance.
func (i *Instance) AddSurface(s vk.Surface) gpu.Surface {
	return gpu.Surface(i.objs.add(s))
}

func (i *Instance) pd(h gpu.PhysicalDevice) vk.PhysicalDevice {
	return lookup[vk.PhysicalDevice](i.objs, uint64(h))
}

func (i *Instance) surface(h gpu.Surface) vk.Surface {
	return lookup[vk.Surface](i.objs, uint64(h))
}

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	if len(i.physical) == 0 {
		return nil, errors.New("vulkan: no GPU devices found")
	}
	return append([]gpu.PhysicalDevice(nil), i.physical...), nil
}

func (i *Instance) DeviceInfo(h gpu.PhysicalDevice) gpu.PhysicalDeviceInfo {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(i.pd(h), &props)
	props.Deref()
	return gpu.PhysicalDeviceInfo{
		Name:       vk.ToString(props.DeviceName[:]),
		Type:       deviceTypeName(props.DeviceType),
		APIVersion: props.ApiVersion,
	}
}

// DeviceExtensions lists the device extensions the physical device supports.
func (i *Instance) DeviceExtensions(h gpu.PhysicalDevice) ([]string, error) {
	return DeviceExtensions(i.pd(h))
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

func (i *Instance) QueueFamilies(h gpu.PhysicalDevice) []gpu.QueueFamily {
	pd := i.pd(h)
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)
	fams := make([]gpu.QueueFamily, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		fams = append(fams, gpu.QueueFamily{Flags: gpu.QueueFlags(p.QueueFlags), Count: p.QueueCount})
	}
	return fams
}

func (i *Instance) SurfaceSupport(h gpu.PhysicalDevice, family uint32, s gpu.Surface) (bool, error) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(i.pd(h), family, i.surface(s), &supported)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceSupportKHR"); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (i *Instance) SurfaceCapabilities(h gpu.PhysicalDevice, s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(i.pd(h), i.surface(s), &caps)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		SupportedTransforms:     gpu.SurfaceTransform(caps.SupportedTransforms),
		CurrentTransform:        gpu.SurfaceTransform(caps.CurrentTransform),
		SupportedCompositeAlpha: gpu.CompositeAlpha(caps.SupportedCompositeAlpha),
	}, nil
}

func (i *Instance) SurfaceFormats(h gpu.PhysicalDevice, s gpu.Surface) ([]gpu.SurfaceFormat, error) {
	pd, surface := i.pd(h), i.surface(s)
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return nil, err
	}
	list := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, list)
	if err := check(ret, "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return nil, err
	}
	formats := make([]gpu.SurfaceFormat, 0, count)
	for _, f := range list[:count] {
		f.Deref()
		formats = append(formats, gpu.SurfaceFormat{Format: gpu.Format(f.Format), ColorSpace: gpu.ColorSpace(f.ColorSpace)})
	}
	return formats, nil
}

func (i *Instance) PresentModes(h gpu.PhysicalDevice, s gpu.Surface) ([]gpu.PresentMode, error) {
	pd, surface := i.pd(h), i.surface(s)
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil)
	if err := check(ret, "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return nil, err
	}
	list := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, list)
	if err := check(ret, "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return nil, err
	}
	modes := make([]gpu.PresentMode, 0, count)
	for _, m := range list[:count] {
		modes = append(modes, gpu.PresentMode(m))
	}
	return modes, nil
}

// CreateDevice creates a logical device with one queue from family and every extension
// enabled. It fails with gpu.ErrExtensionNotPresent when the device lacks one of them.
func (i *Instance) CreateDevice(h gpu.PhysicalDevice, family uint32, extensions []string) (gpu.Device, error) {
	pd := i.pd(h)
	actual, err := DeviceExtensions(pd)
	if err != nil {
		return nil, err
	}
	if names := missingNames(actual, extensions); len(names) > 0 {
		return nil, errors.Wrapf(gpu.ErrExtensionNotPresent, "vulkan: device extensions %v", names)
	}
	exts, _ := checkExisting(actual, safeStrings(extensions))
	var device vk.Device
	ret := vk.CreateDevice(pd, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		EnabledLayerCount:       uint32(len(i.layers)),
		PpEnabledLayerNames:     i.layers,
	}, nil, &device)
	if err := check(ret, "vkCreateDevice"); err != nil {
		return nil, err
	}
	return newDevice(i, pd, device, family), nil
}

func (i *Instance) DestroySurface(s gpu.Surface) {
	surface := take[vk.Surface](i.objs, uint64(s))
	if surface != vk.NullSurface {
		vk.DestroySurface(i.inst, surface, nil)
	}
}

// Destroy destroys surfaces still owned by the instance, the debug callback and the
// instance itself.
func (i *Instance) Destroy() {
	if i.inst == nil {
		return
	}
	i.objs.mu.Lock()
	var surfaces []vk.Surface
	for id, v := range i.objs.objs {
		if s, ok := v.(vk.Surface); ok {
			surfaces = append(surfaces, s)
			delete(i.objs.objs, id)
		}
	}
	i.objs.mu.Unlock()
	if len(surfaces) > 0 {
		i.log.Warn("vulkan: destroying instance with live surfaces", "surfaces", len(surfaces))
	}
	for _, s := range surfaces {
		vk.DestroySurface(i.inst, s, nil)
	}
	if i.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.inst, i.debug, nil)
		i.debug = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(i.inst, nil)
	i.inst = nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	log := debugLog.Load()
	if log == nil {
		return vk.Bool32(vk.False)
	}
	args := []any{"layer", pLayerPrefix, "code", messageCode, "object_type", objectType}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Error(pMessage, args...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Warn(pMessage, args...)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		log.Warn(pMessage, append(args, "performance", true)...)
	default:
		log.Debug(pMessage, args...)
	}
	return vk.Bool32(vk.False)
}

// InstanceExtensions gets a list of instance extensions available on the platform.
func InstanceExtensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if err := check(ret, "vkEnumerateInstanceExtensionProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	if err := check(ret, "vkEnumerateInstanceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// DeviceExtensions gets a list of extensions available on the physical device.
func DeviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)
	if err := check(ret, "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(pd, "", &count, list)
	if err := check(ret, "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers gets a list of layers available on the platform.
func ValidationLayers() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if err := check(ret, "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	if err := check(ret, "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

func extent(e vk.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}
