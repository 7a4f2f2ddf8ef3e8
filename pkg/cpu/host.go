package cpu

// HostFunc implements a called symbol in Go. It receives the six argument
// registers and returns the value for rax.
type HostFunc func(args [6]int64) int64

// Mount makes name callable from the program. Symbols the program defines
// itself take precedence.
func (c *CPU) Mount(name string, fn HostFunc) {
	c.hosts[name] = fn
}
