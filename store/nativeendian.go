package store

import (
	"encoding/binary"
	"unsafe"
)

// nativeEndian is the host's byte order, detected once at init. The
// pack index's hash column is written in this order rather than a
// fixed one — a format quirk inherited from the original implementation
// that we preserve for on-disk compatibility rather than normalize.
var nativeEndian binary.ByteOrder = binary.LittleEndian

func init() {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0 {
		nativeEndian = binary.BigEndian
	}
}
