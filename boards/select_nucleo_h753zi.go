//go:build stm32h7

package boards

var Selected = NucleoH753ZI
