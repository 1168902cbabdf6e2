//go:build rp2040 || rp2350

package boards

var Selected = Pico
