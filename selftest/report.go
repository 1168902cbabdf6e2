// Package selftest is the on-target runtime check suite. It reports one
// line per check, "[PASS] desc" or "[FAIL] desc (expected X, got Y)", and
// never stops early.
package selftest

import "stm32zero-go/x/conv"

// Reporter counts results and formats report lines into a reused buffer.
type Reporter struct {
	out  func(line []byte)
	line []byte

	pass, fail int
}

// NewReporter sends each finished line, without terminator, to out.
func NewReporter(out func(line []byte)) *Reporter {
	return &Reporter{out: out, line: make([]byte, 0, 128)}
}

func (r *Reporter) emit(parts ...string) {
	r.line = r.line[:0]
	for _, p := range parts {
		r.line = append(r.line, p...)
	}
	r.out(r.line)
}

// Say prints a free-form line.
func (r *Reporter) Say(s string) { r.emit(s) }

func (r *Reporter) Section(name string) {
	r.emit("")
	r.emit("--- ", name, " ---")
}

func (r *Reporter) Check(ok bool, desc string) {
	if ok {
		r.pass++
		r.emit("[PASS] ", desc)
		return
	}
	r.fail++
	r.emit("[FAIL] ", desc)
}

func (r *Reporter) CheckEq(got, want int, desc string) {
	if got == want {
		r.pass++
		r.emit("[PASS] ", desc)
		return
	}
	r.fail++
	r.line = append(r.line[:0], "[FAIL] "...)
	r.line = append(r.line, desc...)
	r.line = append(r.line, " (expected "...)
	r.line = conv.AppendInt(r.line, int64(want))
	r.line = append(r.line, ", got "...)
	r.line = conv.AppendInt(r.line, int64(got))
	r.line = append(r.line, ')')
	r.out(r.line)
}

// CheckStatus compares result codes by name.
func (r *Reporter) CheckStatus(got, want string, desc string) {
	if got == want {
		r.pass++
		r.emit("[PASS] ", desc)
		return
	}
	r.fail++
	r.emit("[FAIL] ", desc, " (expected ", want, ", got ", got, ")")
}

func (r *Reporter) Counts() (pass, fail int) { return r.pass, r.fail }

// Summary prints the totals and reports whether everything passed.
func (r *Reporter) Summary() bool {
	r.emit("")
	r.emit(rule)
	r.emit("Test Summary")
	r.emit(rule)
	r.emit("  Passed: ", conv.Itoa(r.pass))
	r.emit("  Failed: ", conv.Itoa(r.fail))
	r.emit("  Total:  ", conv.Itoa(r.pass+r.fail))
	r.emit(rule)
	if r.fail == 0 {
		r.emit("All tests PASSED!")
		return true
	}
	r.emit("Some tests FAILED!")
	return false
}

const rule = "========================================"
