package reader

import (
	"bytes"
	"testing"
)

func TestParseBufferFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    BufferFormat
		wantErr bool
	}{
		{"raw", BufferRaw, false},
		{"HEX", BufferHex, false},
		{"auto", BufferAuto, false},
		{"", BufferAuto, false},
		{"base64", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBufferFormat(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBufferFormat(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func TestParseBuffer(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  BufferFormat
		want    []byte
		wantErr bool
	}{
		{"raw passthrough", "0102", BufferRaw, []byte("0102"), false},
		{"hex", "0102ff", BufferHex, []byte{1, 2, 0xff}, false},
		{"hex with whitespace", "01 02\nff\n", BufferHex, []byte{1, 2, 0xff}, false},
		{"hex invalid", "0g", BufferHex, nil, true},
		{"auto hex", "dead beef\n", BufferAuto, []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"auto odd digits is raw", "abc", BufferAuto, []byte("abc"), false},
		{"auto binary is raw", "\x01\x00\x00\x00", BufferAuto, []byte{1, 0, 0, 0}, false},
		{"auto empty is raw", "", BufferAuto, []byte{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBuffer([]byte(tt.data), tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}
