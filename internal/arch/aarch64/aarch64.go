// Package aarch64 implements arch.Encoder for the aarch64 ISA: a 4-byte
// direct BL/B (imm26, word-granular reach of ±128MiB), a 4-byte NOP, and a
// 16-byte far-jump trampoline (LDR x16,[pc,#8]; BR x16; .quad dst). The
// imm26 bit-packing mirrors the teacher corpus's ARM64 branch patcher,
// which masks the low 26 bits of a B/BL opcode word in place.
package aarch64

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func init() {
	arch.Register(encoder{})
}

type encoder struct{}

func (encoder) ISA() arch.ISA { return arch.AArch64 }

const (
	branchLen  = 4
	maxReach   = 1 << 27 // word-granular imm26 covers ±(2^27) bytes = ±128MiB
	blOpcode   = 0x94000000
	bOpcode    = 0x14000000
	imm26Mask  = 0x03FFFFFF
	nopInsn    = 0xD503201F
	ldrX16Pc8  = 0x58000050 // LDR x16, [pc, #8]
	brX16      = 0xD61F0200 // BR x16
)

func imm26(ip, dst uint64) (uint32, error) {
	if dst%4 != 0 || ip%4 != 0 {
		return 0, fmt.Errorf("aarch64: unaligned branch ip=0x%x dst=0x%x", ip, dst)
	}
	delta := int64(dst) - int64(ip)
	if delta >= maxReach || delta < -maxReach {
		return 0, fmt.Errorf("aarch64: displacement %d from 0x%x to 0x%x exceeds imm26 reach", delta, ip, dst)
	}
	word := delta / 4
	return uint32(word) & imm26Mask, nil
}

func encodeBranch(opcode, imm uint32) []byte {
	buf := make([]byte, branchLen)
	binary.LittleEndian.PutUint32(buf, opcode|imm)
	return buf
}

func (encoder) EncodeCall(ip, dst uint64) ([]byte, error) {
	imm, err := imm26(ip, dst)
	if err != nil {
		return nil, err
	}
	return encodeBranch(blOpcode, imm), nil
}

func (encoder) EncodeJmp(ip, dst uint64) ([]byte, error) {
	imm, err := imm26(ip, dst)
	if err != nil {
		return nil, err
	}
	return encodeBranch(bOpcode, imm), nil
}

func (encoder) EncodeNop() []byte {
	buf := make([]byte, branchLen)
	binary.LittleEndian.PutUint32(buf, nopInsn)
	return buf
}

// EncodeJumpTableEntry returns LDR x16,[pc,#8]; BR x16; .quad dst.
func (encoder) EncodeJumpTableEntry(dst uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], ldrX16Pc8)
	binary.LittleEndian.PutUint32(buf[4:8], brX16)
	binary.LittleEndian.PutUint64(buf[8:16], dst)
	return buf
}

// SyscallInsn returns `svc #0`.
func (encoder) SyscallInsn() []byte {
	return []byte{0x01, 0x00, 0x00, 0xD4}
}

func (encoder) SyscallRegisterMap(s arch.SyscallArgs) map[string]uint64 {
	return map[string]uint64{
		"x8": s.Num,
		"x0": s.Args[0],
		"x1": s.Args[1],
		"x2": s.Args[2],
		"x3": s.Args[3],
		"x4": s.Args[4],
		"x5": s.Args[5],
	}
}

func (encoder) DecodeLen(code []byte) (int, error) {
	if len(code) < 4 {
		return 0, fmt.Errorf("aarch64: need at least 4 bytes to decode, got %d", len(code))
	}
	if _, err := arm64asm.Decode(code); err != nil {
		return 0, fmt.Errorf("aarch64: decode call-site instruction: %w", err)
	}
	// Every aarch64 instruction is exactly one word; successful Decode means
	// the leading word is well-formed.
	return branchLen, nil
}
