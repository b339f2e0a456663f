package circuit

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// circuitDTO is the msgpack shape used to persist frozen circuits in the run
// history store.
type circuitDTO struct {
	NumQubits int        `msgpack:"q"`
	Gates     []Gate     `msgpack:"g"`
	Bindings  []Binding  `msgpack:"b"`
	Registers []Register `msgpack:"r"`
	Frozen    bool       `msgpack:"f"`
}

// Encode serializes the circuit. Only frozen circuits should be persisted;
// ancilla arena state is not carried because a decoded circuit is read-only.
func Encode(c *Circuit) ([]byte, error) {
	if !c.frozen {
		return nil, fmt.Errorf("refusing to encode unfrozen circuit")
	}
	return msgpack.Marshal(circuitDTO{
		NumQubits: c.numQubits,
		Gates:     c.gates,
		Bindings:  c.bindings,
		Registers: c.registers,
		Frozen:    c.frozen,
	})
}

// Decode restores a persisted circuit. The result is frozen.
func Decode(data []byte) (*Circuit, error) {
	var dto circuitDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode circuit: %w", err)
	}
	return &Circuit{
		numQubits: dto.NumQubits,
		gates:     dto.Gates,
		bindings:  dto.Bindings,
		registers: dto.Registers,
		frozen:    true,
	}, nil
}
