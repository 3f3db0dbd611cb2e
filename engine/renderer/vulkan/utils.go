package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/purrfect/engine/renderer/driver"
)

// resultString names a VkResult for logs and errors.
func resultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.EventSet:
		return "VK_EVENT_SET"
	case vk.EventReset:
		return "VK_EVENT_RESET"
	case vk.Incomplete:
		return "VK_INCOMPLETE"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case vk.ErrorIncompatibleDisplay:
		return "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case vk.ErrorFragmentation:
		return "VK_ERROR_FRAGMENTATION"
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN"
	}
	return "VK_RESULT_UNKNOWN"
}

// check turns a failed VkResult into an error naming op. Device loss is
// marked so callers can test for driver.ErrDeviceLost.
func check(result vk.Result, op string) error {
	if result == vk.Success {
		return nil
	}
	err := errors.Newf("%s failed with %s", op, resultString(result))
	if result == vk.ErrorDeviceLost {
		err = errors.Mark(err, driver.ErrDeviceLost)
	}
	return err
}

// status maps the results acquire and present may legitimately return.
func status(result vk.Result, op string) (driver.Status, error) {
	switch result {
	case vk.Success:
		return driver.StatusSuccess, nil
	case vk.Suboptimal:
		return driver.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return driver.StatusOutOfDate, nil
	}
	return driver.StatusSuccess, check(result, op)
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

var end = "\x00"
var endChar byte = '\x00'

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// cString reads a fixed size, NUL terminated name as returned by the
// property queries.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == endChar {
			return string(arr[:i])
		}
	}
	return string(arr)
}

func unsafePointer(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
