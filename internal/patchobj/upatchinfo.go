package patchobj

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// upatchInfoSize is sizeof(struct upatch_info) per spec §6's packed
// layout: {u32 type, u32 version, char target_func[64], char author[64],
// u64 replace_addr_placeholder}.
const upatchInfoSize = 4 + 4 + 64 + 64 + 8

// UpatchInfo is the fixed-layout metadata record every patch object
// carries in its .upatch.info section.
type UpatchInfo struct {
	Type                   uint32
	Version                uint32
	TargetFunc             string
	Author                 string
	ReplaceAddrPlaceholder uint64
}

func parseUpatchInfo(b []byte) (UpatchInfo, error) {
	if len(b) < upatchInfoSize {
		return UpatchInfo{}, fmt.Errorf("patchobj: .upatch.info is %d bytes, want at least %d", len(b), upatchInfoSize)
	}
	info := UpatchInfo{
		Type:    binary.LittleEndian.Uint32(b[0:4]),
		Version: binary.LittleEndian.Uint32(b[4:8]),
	}
	info.TargetFunc = cString(b[8:72])
	info.Author = cString(b[72:136])
	info.ReplaceAddrPlaceholder = binary.LittleEndian.Uint64(b[136:144])
	return info, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
