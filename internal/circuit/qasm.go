package circuit

import (
	"fmt"
	"strings"
)

// QASM renders the circuit as OpenQASM 2.0, the wire format accepted by the
// execution providers. All gate kinds map directly onto qelib1.inc gates.
func (c *Circuit) QASM() string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&sb, "qreg q[%d];\n", max(c.numQubits, 1))
	if n := c.Cbits(); n > 0 {
		fmt.Fprintf(&sb, "creg c[%d];\n", n)
	}
	sb.WriteString("\n")

	for _, g := range c.gates {
		switch g.Kind {
		case KindX, KindH:
			fmt.Fprintf(&sb, "%s q[%d];\n", g.Kind, g.Targets[0])
		case KindCX:
			fmt.Fprintf(&sb, "cx q[%d],q[%d];\n", g.Controls[0], g.Targets[0])
		case KindCCX:
			fmt.Fprintf(&sb, "ccx q[%d],q[%d],q[%d];\n", g.Controls[0], g.Controls[1], g.Targets[0])
		case KindSwap:
			fmt.Fprintf(&sb, "swap q[%d],q[%d];\n", g.Targets[0], g.Targets[1])
		case KindCSwap:
			fmt.Fprintf(&sb, "cswap q[%d],q[%d],q[%d];\n", g.Controls[0], g.Targets[0], g.Targets[1])
		}
	}

	if len(c.bindings) > 0 {
		sb.WriteString("\n")
		for _, b := range c.bindings {
			fmt.Fprintf(&sb, "measure q[%d] -> c[%d];\n", b.Qubit, b.Cbit)
		}
	}
	return sb.String()
}
