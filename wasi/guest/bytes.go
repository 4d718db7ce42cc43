//go:build wasip1

package guest

import "unsafe"

// byteHandles keeps host-written buffers reachable until the guest has
// copied them out.
var (
	byteHandles           = map[uint32][]byte{}
	nextByteHandle uint32 = 1
)

// AllocBytes hands the host a buffer of size bytes. The result packs the
// handle in the upper 32 bits and the buffer address in the lower 32.
//
//go:wasmexport alloc_bytes
func AllocBytes(size uint32) uint64 {
	buf := make([]byte, size, size+1)
	handle := nextByteHandle
	nextByteHandle++
	byteHandles[handle] = buf
	return uint64(handle)<<32 | uint64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}

//go:wasmexport free_bytes
func FreeBytes(handle uint32) {
	delete(byteHandles, handle)
}

// takeBytes returns the buffer behind handle and releases the handle.
func takeBytes(handle uint32) []byte {
	buf := byteHandles[handle]
	FreeBytes(handle)
	return buf
}
