//go:build !stm32h7

package cache

// None is the maintainer for parts without a data cache (STM32H5, RP2, host).
type None struct{}

func (None) Clean(uintptr, int)      {}
func (None) Invalidate(uintptr, int) {}

// Default returns the maintainer for the build target.
func Default() Maintainer { return None{} }
