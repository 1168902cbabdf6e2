package sio

import (
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/x/timex"
)

// Timeouts accepted by every blocking call.
const (
	NoWait  time.Duration = 0
	Forever               = timex.Forever
)

// Result is the outcome of a read, write or flush: a status and the number
// of bytes moved. N may be non-zero alongside a failure status.
type Result struct {
	Status errcode.Code
	N      int
}

// OK reports a successful status.
func (r Result) OK() bool { return r.Status == errcode.OK }

// Err returns nil for OK and the status code otherwise.
func (r Result) Err() error {
	if r.Status == errcode.OK || r.Status == "" {
		return nil
	}
	return r.Status
}

func ok(n int) Result                   { return Result{Status: errcode.OK, N: n} }
func fail(c errcode.Code, n int) Result { return Result{Status: c, N: n} }
