//go:build stm32h7

package cache

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"
)

// Cortex-M7 cache maintenance operations by MVA (ARMv7-M B2.2.7).
var (
	scbDCIMVAC = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000EF5C)))
	scbDCCMVAC = (*volatile.Register32)(unsafe.Pointer(uintptr(0xE000EF68)))
)

// SCB drives the Cortex-M7 D-cache through the SCB maintenance registers.
type SCB struct{}

func (SCB) Clean(addr uintptr, n int) {
	start, length := Range(addr, n)
	if length == 0 {
		return
	}
	arm.Asm("dsb 0xF")
	for a := start; a < start+uintptr(length); a += LineSize {
		scbDCCMVAC.Set(uint32(a))
	}
	arm.Asm("dsb 0xF")
	arm.Asm("isb 0xF")
}

func (SCB) Invalidate(addr uintptr, n int) {
	start, length := Range(addr, n)
	if length == 0 {
		return
	}
	arm.Asm("dsb 0xF")
	for a := start; a < start+uintptr(length); a += LineSize {
		scbDCIMVAC.Set(uint32(a))
	}
	arm.Asm("dsb 0xF")
	arm.Asm("isb 0xF")
}

// Default returns the maintainer for the build target.
func Default() Maintainer { return SCB{} }
