package config

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/teewire/codec"
)

// OperationFile is an op.yaml description of one call's parameters.
//
//	shared_memory:
//	  shm0: {size: 16, flags: [input, output], data: "hello"}
//	params:
//	  - {kind: value_input, a: 1, b: 2}
//	  - {kind: memref_temp_inout, size: 32, data: "abc"}
//	  - {kind: memref_whole, shm: shm0}
type OperationFile struct {
	SharedMemory map[string]SharedMemoryConfig `yaml:"shared_memory"`
	Params       []ParamConfig                 `yaml:"params"`
}

// SharedMemoryConfig describes a registered shared memory object.
type SharedMemoryConfig struct {
	Size  *int     `yaml:"size"`
	Flags []string `yaml:"flags"`
	Data  string   `yaml:"data"`
	Hex   string   `yaml:"hex"`
}

// ParamConfig describes one parameter slot.
type ParamConfig struct {
	Kind string `yaml:"kind"`
	// Value parameters.
	A uint32 `yaml:"a"`
	B uint32 `yaml:"b"`
	// Temporary buffers. Size defaults to the data length.
	Size *int   `yaml:"size"`
	Data string `yaml:"data"`
	Hex  string `yaml:"hex"`
	// NoBuffer sends the size without a buffer.
	NoBuffer bool `yaml:"no_buffer"`
	// Whole references name a shared_memory entry.
	Shm string `yaml:"shm"`
}

// Operation is a built operation together with its named shared memory.
type Operation struct {
	Op     *codec.Operation
	Shared map[string]*codec.SharedMemory
}

// SharedNames returns the shared memory names in sorted order.
func (o *Operation) SharedNames() []string {
	names := make([]string, 0, len(o.Shared))
	for name := range o.Shared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadOperation reads an op.yaml file and builds the operation it describes.
func LoadOperation(path string) (*Operation, error) {
	var f OperationFile
	if err := decodeFile(path, "operation", &f); err != nil {
		return nil, err
	}
	op, err := BuildOperation(&f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return op, nil
}

// BuildOperation converts a parsed OperationFile into a codec.Operation.
// Slots not listed are None.
func BuildOperation(f *OperationFile) (*Operation, error) {
	if len(f.Params) > codec.ParamCount {
		return nil, fmt.Errorf("at most %d params allowed, got %d", codec.ParamCount, len(f.Params))
	}

	shared := make(map[string]*codec.SharedMemory, len(f.SharedMemory))
	for name, sc := range f.SharedMemory {
		shm, err := buildShared(sc)
		if err != nil {
			return nil, fmt.Errorf("shared_memory %s: %w", name, err)
		}
		shared[name] = shm
	}

	op := &codec.Operation{}
	for i, pc := range f.Params {
		p, err := buildParam(pc, shared)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		op.Params[i] = p
	}
	for i := len(f.Params); i < codec.ParamCount; i++ {
		op.Params[i] = &codec.None{}
	}
	return &Operation{Op: op, Shared: shared}, nil
}

func buildShared(sc SharedMemoryConfig) (*codec.SharedMemory, error) {
	var flags codec.MemFlags
	for _, f := range sc.Flags {
		switch strings.ToLower(f) {
		case "input", "in":
			flags |= codec.MemInput
		case "output", "out":
			flags |= codec.MemOutput
		case "inout":
			flags |= codec.MemInput | codec.MemOutput
		default:
			return nil, fmt.Errorf("unknown flag %q", f)
		}
	}

	buf, size, err := buffer(sc.Data, sc.Hex, sc.Size)
	if err != nil {
		return nil, err
	}
	return &codec.SharedMemory{Buffer: buf, Size: size, Flags: flags}, nil
}

func buildParam(pc ParamConfig, shared map[string]*codec.SharedMemory) (codec.Param, error) {
	kind, err := codec.ParseKind(pc.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case codec.KindNone:
		return &codec.None{}, nil

	case codec.KindValueIn, codec.KindValueOut, codec.KindValueInOut:
		return &codec.Value{Dir: directionOf(kind), A: pc.A, B: pc.B}, nil

	case codec.KindTempIn, codec.KindTempOut, codec.KindTempInOut:
		buf, size, err := buffer(pc.Data, pc.Hex, pc.Size)
		if err != nil {
			return nil, err
		}
		if pc.NoBuffer {
			if pc.Data != "" || pc.Hex != "" {
				return nil, fmt.Errorf("no_buffer conflicts with data")
			}
			buf = nil
		}
		return &codec.TempRef{Dir: directionOf(kind), Buffer: buf, Size: size}, nil

	case codec.KindWhole:
		if pc.Shm == "" {
			return nil, fmt.Errorf("memref_whole requires shm")
		}
		parent, ok := shared[pc.Shm]
		if !ok {
			return nil, fmt.Errorf("unknown shared memory %q", pc.Shm)
		}
		return &codec.WholeRef{Parent: parent}, nil

	default:
		return nil, fmt.Errorf("%s has no wire encoding", kind)
	}
}

// buffer builds a byte buffer from literal or hex data. The buffer's
// capacity is size when given, otherwise the data length.
func buffer(data, hexData string, size *int) ([]byte, int, error) {
	if data != "" && hexData != "" {
		return nil, 0, fmt.Errorf("data and hex are mutually exclusive")
	}

	content := []byte(data)
	if hexData != "" {
		decoded, err := hex.DecodeString(strings.Join(strings.Fields(hexData), ""))
		if err != nil {
			return nil, 0, fmt.Errorf("invalid hex: %w", err)
		}
		content = decoded
	}

	n := len(content)
	if size != nil {
		if *size < 0 {
			return nil, 0, fmt.Errorf("size must be >= 0, got %d", *size)
		}
		if *size < len(content) {
			return nil, 0, fmt.Errorf("data is %d bytes, larger than size %d", len(content), *size)
		}
		n = *size
	}

	buf := make([]byte, n)
	copy(buf, content)
	return buf, n, nil
}

func directionOf(k codec.Kind) codec.Direction {
	switch k {
	case codec.KindValueIn, codec.KindTempIn:
		return codec.DirIn
	case codec.KindValueOut, codec.KindTempOut:
		return codec.DirOut
	default:
		return codec.DirInOut
	}
}
