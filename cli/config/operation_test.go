package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/teewire/codec"
)

func writeOp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "op.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write op file: %v", err)
	}
	return path
}

func TestLoadOperation_AllKinds(t *testing.T) {
	yaml := `shared_memory:
  shm0:
    size: 8
    flags: [input, output]
    data: "hi"
  ro:
    flags: [input]
    hex: "de ad be ef"
params:
  - kind: value_inout
    a: 7
    b: 9
  - kind: memref_temp_input
    data: "abc"
  - kind: memref_whole
    shm: shm0
  - kind: memref_whole
    shm: ro
`
	built, err := LoadOperation(writeOp(t, yaml))
	if err != nil {
		t.Fatalf("LoadOperation: %v", err)
	}

	got := built.Op.Kinds()
	want := [codec.ParamCount]codec.Kind{codec.KindValueInOut, codec.KindTempIn, codec.KindWhole, codec.KindWhole}
	if got != want {
		t.Errorf("Kinds = %v, want %v", got, want)
	}

	v := built.Op.Params[0].(*codec.Value)
	if v.A != 7 || v.B != 9 || v.Dir != codec.DirInOut {
		t.Errorf("value = %+v", v)
	}
	tmp := built.Op.Params[1].(*codec.TempRef)
	if string(tmp.Buffer) != "abc" || tmp.Size != 3 || tmp.Dir != codec.DirIn {
		t.Errorf("temp = %+v", tmp)
	}

	shm := built.Shared["shm0"]
	if shm.Size != 8 || len(shm.Buffer) != 8 || string(shm.Buffer[:2]) != "hi" {
		t.Errorf("shm0 = %+v", shm)
	}
	if shm.Flags != codec.MemInput|codec.MemOutput {
		t.Errorf("shm0 flags = %v", shm.Flags)
	}
	if w := built.Op.Params[2].(*codec.WholeRef); w.Parent != shm {
		t.Error("whole ref does not point at shm0")
	}
	if ro := built.Shared["ro"]; ro.Size != 4 || ro.Buffer[0] != 0xde {
		t.Errorf("ro = %+v", ro)
	}

	if names := built.SharedNames(); len(names) != 2 || names[0] != "ro" || names[1] != "shm0" {
		t.Errorf("SharedNames = %v", names)
	}
}

func TestBuildOperation_FillsNone(t *testing.T) {
	built, err := BuildOperation(&OperationFile{Params: []ParamConfig{{Kind: "value_output"}}})
	if err != nil {
		t.Fatalf("BuildOperation: %v", err)
	}
	for i := 1; i < codec.ParamCount; i++ {
		if _, ok := built.Op.Params[i].(*codec.None); !ok {
			t.Errorf("param %d = %T, want *codec.None", i, built.Op.Params[i])
		}
	}
}

func TestBuildOperation_TempBuffers(t *testing.T) {
	size := 16
	zero := 0
	tests := []struct {
		name     string
		pc       ParamConfig
		wantLen  int
		wantSize int
		wantNil  bool
	}{
		{"sized output", ParamConfig{Kind: "memref_temp_output", Size: &size}, 16, 16, false},
		{"data pads to size", ParamConfig{Kind: "memref_temp_inout", Size: &size, Data: "xy"}, 16, 16, false},
		{"hex", ParamConfig{Kind: "memref_temp_input", Hex: "0102"}, 2, 2, false},
		{"no buffer", ParamConfig{Kind: "memref_temp_output", Size: &size, NoBuffer: true}, 0, 16, true},
		{"zero size", ParamConfig{Kind: "memref_temp_output", Size: &zero}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := BuildOperation(&OperationFile{Params: []ParamConfig{tt.pc}})
			if err != nil {
				t.Fatalf("BuildOperation: %v", err)
			}
			tmp := built.Op.Params[0].(*codec.TempRef)
			if len(tmp.Buffer) != tt.wantLen || tmp.Size != tt.wantSize {
				t.Errorf("buffer len/size = %d/%d, want %d/%d", len(tmp.Buffer), tmp.Size, tt.wantLen, tt.wantSize)
			}
			if (tmp.Buffer == nil) != tt.wantNil {
				t.Errorf("buffer nil = %v, want %v", tmp.Buffer == nil, tt.wantNil)
			}
		})
	}
}

func TestBuildOperation_Errors(t *testing.T) {
	small := 1
	neg := -1
	tests := []struct {
		name    string
		file    OperationFile
		wantErr string
	}{
		{
			"too many params",
			OperationFile{Params: make([]ParamConfig, 5)},
			"at most 4",
		},
		{
			"unknown kind",
			OperationFile{Params: []ParamConfig{{Kind: "value_sideways"}}},
			"unknown parameter kind",
		},
		{
			"partial kind",
			OperationFile{Params: []ParamConfig{{Kind: "memref_partial_input"}}},
			"no wire encoding",
		},
		{
			"data larger than size",
			OperationFile{Params: []ParamConfig{{Kind: "memref_temp_input", Data: "abc", Size: &small}}},
			"larger than size",
		},
		{
			"negative size",
			OperationFile{Params: []ParamConfig{{Kind: "memref_temp_input", Size: &neg}}},
			"size must be",
		},
		{
			"data and hex",
			OperationFile{Params: []ParamConfig{{Kind: "memref_temp_input", Data: "a", Hex: "61"}}},
			"mutually exclusive",
		},
		{
			"bad hex",
			OperationFile{Params: []ParamConfig{{Kind: "memref_temp_input", Hex: "zz"}}},
			"invalid hex",
		},
		{
			"no_buffer with data",
			OperationFile{Params: []ParamConfig{{Kind: "memref_temp_output", Data: "a", NoBuffer: true}}},
			"no_buffer",
		},
		{
			"whole without shm",
			OperationFile{Params: []ParamConfig{{Kind: "memref_whole"}}},
			"requires shm",
		},
		{
			"whole unknown shm",
			OperationFile{Params: []ParamConfig{{Kind: "memref_whole", Shm: "nope"}}},
			"unknown shared memory",
		},
		{
			"bad flag",
			OperationFile{SharedMemory: map[string]SharedMemoryConfig{"s": {Flags: []string{"sideways"}}}},
			"unknown flag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildOperation(&tt.file)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOperation_UnknownKeyRejected(t *testing.T) {
	yaml := "params:\n  - kind: none\n    colour: blue\n"
	_, err := LoadOperation(writeOp(t, yaml))
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("err = %v, want unknown key error", err)
	}
}

func TestLoadOperation_EncodesCleanly(t *testing.T) {
	yaml := `params:
  - kind: value_input
    a: 1
    b: 2
  - kind: memref_temp_output
    size: 4
`
	built, err := LoadOperation(writeOp(t, yaml))
	if err != nil {
		t.Fatalf("LoadOperation: %v", err)
	}
	buf, err := codec.Encode(built.Op)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// 4 headers + value payload + 4-byte temp payload
	if want := 4*codec.HeaderSize + codec.ValueSize + 4; len(buf) != want {
		t.Errorf("len = %d, want %d", len(buf), want)
	}
}
