//go:build stm32h5

package boards

var Selected = WeActH503
