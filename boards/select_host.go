//go:build !stm32h7 && !stm32h5 && !rp2040 && !rp2350

package boards

var Selected = Host
