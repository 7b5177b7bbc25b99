// Package x86_64 implements arch.Encoder for the x86-64 ISA: 5-byte direct
// CALL/JMP rel32 branches, a 5-byte NOP, and a 14-byte far-jump trampoline
// built from an IP-relative indirect jump followed by its own 8-byte
// absolute target. Byte layouts follow the same write-opcode-then-operand
// shape as the teacher corpus's x86-64 code generators (CallSymbol/
// JumpUnconditional writing 0xE8/0xE9 then a little-endian rel32).
package x86_64

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/arch/x86/x86asm"

	"github.com/ulpatch/ulpatch/internal/arch"
)

func init() {
	arch.Register(encoder{})
}

type encoder struct{}

func (encoder) ISA() arch.ISA { return arch.X86_64 }

// callLen is the length of a CALL rel32 / JMP rel32 instruction: one opcode
// byte plus a 4-byte little-endian displacement.
const callLen = 5

func rel32(ip, dst uint64, insnLen int) (int32, error) {
	delta := int64(dst) - int64(ip) - int64(insnLen)
	if delta > math.MaxInt32 || delta < math.MinInt32 {
		return 0, fmt.Errorf("x86_64: displacement %d from 0x%x to 0x%x exceeds rel32 reach", delta, ip, dst)
	}
	return int32(delta), nil
}

func (encoder) EncodeCall(ip, dst uint64) ([]byte, error) {
	disp, err := rel32(ip, dst, callLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, callLen)
	buf[0] = 0xE8
	binary.LittleEndian.PutUint32(buf[1:], uint32(disp))
	return buf, nil
}

func (encoder) EncodeJmp(ip, dst uint64) ([]byte, error) {
	disp, err := rel32(ip, dst, callLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, callLen)
	buf[0] = 0xE9
	binary.LittleEndian.PutUint32(buf[1:], uint32(disp))
	return buf, nil
}

// EncodeNop returns the 5-byte multi-byte NOP (NOPL 0(%rax,%rax,1)),
// preserving call-site length without disturbing any flags or registers.
func (encoder) EncodeNop() []byte {
	return []byte{0x0F, 0x1F, 0x44, 0x00, 0x00}
}

// EncodeJumpTableEntry returns `FF 25 00 00 00 00` (jmp *(%rip+0)) followed
// immediately by the 8-byte absolute target it dereferences — 14 bytes
// total, self-contained and position-independent.
func (encoder) EncodeJumpTableEntry(dst uint64) []byte {
	buf := make([]byte, 14)
	buf[0] = 0xFF
	buf[1] = 0x25
	// bytes 2..5 are the zero rel32 operand: dereference the very next 8 bytes.
	binary.LittleEndian.PutUint64(buf[6:], dst)
	return buf
}

func (encoder) SyscallInsn() []byte {
	return []byte{0x0F, 0x05}
}

func (encoder) SyscallRegisterMap(s arch.SyscallArgs) map[string]uint64 {
	return map[string]uint64{
		"rax": s.Num,
		"rdi": s.Args[0],
		"rsi": s.Args[1],
		"rdx": s.Args[2],
		"r10": s.Args[3],
		"r8":  s.Args[4],
		"r9":  s.Args[5],
	}
}

func (encoder) DecodeLen(code []byte) (int, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return 0, fmt.Errorf("x86_64: decode call-site instruction: %w", err)
	}
	if inst.Len == 0 {
		return 0, fmt.Errorf("x86_64: decoded zero-length instruction")
	}
	return inst.Len, nil
}
