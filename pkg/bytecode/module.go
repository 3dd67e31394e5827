package bytecode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ModuleMagic prefixes every serialized module.
const ModuleMagic = "LXGM"

// ModuleVersion is the current container format version.
const ModuleVersion uint16 = 1

var (
	ErrInvalidMagic       = errors.New("invalid module magic")
	ErrUnsupportedVersion = errors.New("unsupported module version")
	ErrNoEntry            = errors.New("module has no entry procedure")
)

// cborEncMode uses canonical mode so equal modules encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Module is the executable container: a named unit exposing exactly one
// no-argument entry procedure.
type Module struct {
	Name    string  `cbor:"name"`
	Version uint16  `cbor:"version"`
	Entry   *Method `cbor:"entry"`
}

// NewModule wraps an assembled entry procedure.
func NewModule(name string, entry *Method) *Module {
	return &Module{Name: name, Version: ModuleVersion, Entry: entry}
}

// Marshal serializes the module as the magic header followed by canonical CBOR.
func (m *Module) Marshal() ([]byte, error) {
	if m.Entry == nil {
		return nil, ErrNoEntry
	}
	body, err := cborEncMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal module: %w", err)
	}
	buf := make([]byte, 0, len(ModuleMagic)+len(body))
	buf = append(buf, ModuleMagic...)
	return append(buf, body...), nil
}

// Unmarshal decodes a module without verifying its code. Use Load for
// untrusted input.
func Unmarshal(data []byte) (*Module, error) {
	if !bytes.HasPrefix(data, []byte(ModuleMagic)) {
		return nil, ErrInvalidMagic
	}
	var m Module
	if err := cbor.Unmarshal(data[len(ModuleMagic):], &m); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal module: %w", err)
	}
	if m.Version != ModuleVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	if m.Entry == nil {
		return nil, ErrNoEntry
	}
	return &m, nil
}
