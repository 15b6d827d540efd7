package scope

// CallDepth counts nested invocations of one hook on one lane. It lets a hook
// ignore invocations caused by its own side effects.
type CallDepth struct {
	n int
}

// Enter increments the depth and reports whether this is the outermost call.
// Every Enter must be paired with an Exit, including skipped ones.
func (d *CallDepth) Enter() bool {
	d.n++
	return d.n == 1
}

func (d *CallDepth) Exit() {
	if d.n > 0 {
		d.n--
	}
}

func (d *CallDepth) Value() int {
	return d.n
}
