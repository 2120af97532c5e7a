package codec

import "encoding/binary"

// Record layout:
//
//	kind (u32 LE) | length (u32 LE) | payload (length bytes)
//
// A buffer is ParamCount records packed back to back, in slot order, with no
// padding. Little-endian matches the service domain's native layout.
const (
	HeaderSize = 8
	ValueSize  = 8

	maxWireLen = 0xFFFFFFFF
)

// Record is one decoded wire record. Payload aliases the source buffer.
type Record struct {
	Kind    Kind
	Payload []byte
}

func putHeader(b []byte, kind Kind, length uint32) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(kind))
	binary.LittleEndian.PutUint32(b[4:8], length)
}

// readRecord reads the record for slot starting at off. It fails with
// EXCESS_DATA unless the header and the full declared payload lie within
// buf. The returned offset is the start of the next record.
func readRecord(buf []byte, off, slot int) (Record, int, error) {
	if off >= len(buf) {
		return Record{}, off, newError(CodeExcessData, slot,
			"record starts at %d, buffer ends at %d", off, len(buf))
	}
	if len(buf)-off < HeaderSize {
		return Record{}, off, newError(CodeExcessData, slot,
			"truncated record header: %d bytes left", len(buf)-off)
	}
	kind := Kind(binary.LittleEndian.Uint32(buf[off : off+4]))
	length := binary.LittleEndian.Uint32(buf[off+4 : off+8])
	start := off + HeaderSize
	if uint64(length) > uint64(len(buf)-start) {
		return Record{}, off, newError(CodeExcessData, slot,
			"record declares %d payload bytes, %d left", length, len(buf)-start)
	}
	end := start + int(length)
	return Record{Kind: kind, Payload: buf[start:end:end]}, end, nil
}

// Records splits buf into its ParamCount records without interpreting them.
// Bytes past the last record are ignored, as Decode ignores them.
func Records(buf []byte) ([]Record, error) {
	records, _, err := ScanRecords(buf)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ScanRecords reads records like Records but keeps what it parsed before
// the first error, for diagnostics. end is the offset just past the last
// record read.
func ScanRecords(buf []byte) (records []Record, end int, err error) {
	records = make([]Record, 0, ParamCount)
	for i := 0; i < ParamCount; i++ {
		rec, next, err := readRecord(buf, end, i)
		if err != nil {
			return records, end, err
		}
		records = append(records, rec)
		end = next
	}
	return records, end, nil
}

// AppendRecord appends the encoding of r to dst.
func AppendRecord(dst []byte, r Record) []byte {
	var hdr [HeaderSize]byte
	putHeader(hdr[:], r.Kind, uint32(len(r.Payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, r.Payload...)
}

// EncodeRecords builds a buffer from already-normalized records. Services
// use it to assemble a response. The caller supplies exactly one record per
// slot; EncodeRecords does not pad or truncate.
func EncodeRecords(records []Record) []byte {
	n := 0
	for _, r := range records {
		n += HeaderSize + len(r.Payload)
	}
	buf := make([]byte, 0, n)
	for _, r := range records {
		buf = AppendRecord(buf, r)
	}
	return buf
}
