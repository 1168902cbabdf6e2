//go:build !tinygo

// siosim drives sio ports over simulated UART lines on the host.
package main

func main() { Execute() }
