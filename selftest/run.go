package selftest

import "stm32zero-go/sio"

// Run prints the banner, runs every section and the summary.
func Run(p *sio.Port, out func(line []byte), o Options) *Reporter {
	r := NewReporter(out)
	r.Say("")
	r.Say(rule)
	r.Say("STM32ZERO Runtime Test Suite")
	r.Say(rule)

	r.Section("Core Tests")
	Core(r)
	r.Section("SIO Tests")
	SIO(r, p, o)

	r.Summary()
	return r
}
