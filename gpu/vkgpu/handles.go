package vkgpu

import (
	"sync"
	"unsafe"
)

// handles maps the opaque ids handed out through the gpu package to native Vulkan objects.
// Id 0 is never issued, so a zero handle always resolves to the zero (null) object.
type handles struct {
	mu   sync.Mutex
	next uint64
	objs map[uint64]any
}

func newHandles() *handles {
	return &handles{objs: make(map[uint64]any)}
}

func (h *handles) add(v any) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.objs[h.next] = v
	return h.next
}

func (h *handles) remove(id uint64) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.objs[id]
	delete(h.objs, id)
	return v, ok
}

func (h *handles) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objs)
}

// lookup returns the object for id, or the zero T when id is unknown or of another type.
func lookup[T any](h *handles, id uint64) T {
	h.mu.Lock()
	v, ok := h.objs[id]
	h.mu.Unlock()
	if !ok {
		var zero T
		return zero
	}
	t, _ := v.(T)
	return t
}

// take removes id and returns its object, with the same zero fallback as lookup.
func take[T any](h *handles, id uint64) T {
	v, _ := h.remove(id)
	t, _ := v.(T)
	return t
}

func safeString(s string) string {
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, safeString(s))
	}
	return out
}

// sliceUint32 reinterprets SPIR-V bytes as words. len(data) must be a multiple of 4.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// checkExisting returns the entries of required that are present in actual, in required
// order, and how many were missing.
func checkExisting(actual, required []string) (existing []string, missing int) {
	have := make(map[string]struct{}, len(actual))
	for _, s := range actual {
		have[safeString(s)] = struct{}{}
	}
	for _, s := range required {
		if _, ok := have[s]; ok {
			existing = append(existing, s)
		} else {
			missing++
		}
	}
	return existing, missing
}

// missingNames returns the entries of required that are not in actual.
func missingNames(actual, required []string) []string {
	have := make(map[string]struct{}, len(actual))
	for _, s := range actual {
		have[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
