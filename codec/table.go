package codec

import (
	"encoding/binary"
	"fmt"
)

// kindEntry is the complete treatment of one parameter kind. Encode and
// Decode dispatch through kindTable only, so a kind cannot be sized one way
// and written another.
type kindEntry struct {
	// size returns the payload length the slot occupies on the wire.
	size func(st *state, slot int, p Param) (int, error)
	// encode fills payload (already zeroed, exactly size bytes) and returns
	// the normalized kind written to the record header.
	encode func(st *state, slot int, p Param, payload []byte) (Kind, error)
	// decode applies a response record to the slot.
	decode func(st *state, slot int, p Param, rec Record) error
	// writeBack marks kinds through which a service returns data.
	writeBack bool
}

var kindTable = map[Kind]kindEntry{
	KindNone:         {size: sizeNone, encode: encodeNone, decode: decodeSkip},
	KindValueIn:      {size: sizeValue, encode: encodeValue, decode: decodeSkip},
	KindValueOut:     {size: sizeValue, encode: encodeValue, decode: decodeValue, writeBack: true},
	KindValueInOut:   {size: sizeValue, encode: encodeValue, decode: decodeValue, writeBack: true},
	KindTempIn:       {size: sizeTemp, encode: encodeTemp, decode: decodeSkip},
	KindTempOut:      {size: sizeTemp, encode: encodeTemp, decode: decodeTemp, writeBack: true},
	KindTempInOut:    {size: sizeTemp, encode: encodeTemp, decode: decodeTemp, writeBack: true},
	KindWhole:        {size: sizeWhole, encode: encodeWhole, decode: decodeWhole, writeBack: true},
	KindPartialIn:    {size: sizeDefect, encode: encodeDefect, decode: decodeDefect},
	KindPartialOut:   {size: sizeDefect, encode: encodeDefect, decode: decodeDefect},
	KindPartialInOut: {size: sizeDefect, encode: encodeDefect, decode: decodeDefect},
}

func entryFor(slot int, p Param) (kindEntry, Kind, error) {
	k := kindOf(p)
	if e, ok := kindTable[k]; ok {
		return e, k, nil
	}
	if k == KindUnknown {
		return kindEntry{}, k, newError(CodeBadParameters, slot, "malformed parameter %T", p)
	}
	return kindEntry{}, k, newError(CodeBadParameters, slot, "unknown parameter kind %s", k)
}

// --- none ---

func sizeNone(*state, int, Param) (int, error) { return 0, nil }

func encodeNone(*state, int, Param, []byte) (Kind, error) { return KindNone, nil }

// decodeSkip handles kinds that carry nothing back.
func decodeSkip(st *state, slot int, p Param, _ Record) error {
	st.logger.Debug("param skipped", map[string]any{"slot": slot, "kind": kindOf(p).String()})
	return nil
}

// --- values ---

func sizeValue(*state, int, Param) (int, error) { return ValueSize, nil }

func encodeValue(st *state, slot int, p Param, payload []byte) (Kind, error) {
	v := p.(*Value)
	binary.LittleEndian.PutUint32(payload[0:4], v.A)
	binary.LittleEndian.PutUint32(payload[4:8], v.B)
	st.logger.Debug("value param", map[string]any{
		"slot": slot, "kind": v.Kind().String(), "a": fmt.Sprintf("0x%x", v.A), "b": fmt.Sprintf("0x%x", v.B),
	})
	return v.Kind(), nil
}

func decodeValue(st *state, slot int, p Param, rec Record) error {
	v := p.(*Value)
	if rec.Kind != v.Kind() {
		return newError(CodeBadFormat, slot, "record kind %s, expected %s", rec.Kind, v.Kind())
	}
	if len(rec.Payload) != ValueSize {
		return newError(CodeBadParameters, slot, "value record length %d, expected %d", len(rec.Payload), ValueSize)
	}
	v.A = binary.LittleEndian.Uint32(rec.Payload[0:4])
	v.B = binary.LittleEndian.Uint32(rec.Payload[4:8])
	st.logger.Debug("value param", map[string]any{
		"slot": slot, "kind": v.Kind().String(), "a": fmt.Sprintf("0x%x", v.A), "b": fmt.Sprintf("0x%x", v.B),
	})
	return nil
}

// --- temporary buffers ---

func sizeTemp(_ *state, slot int, p Param) (int, error) {
	t := p.(*TempRef)
	return checkBuffer(slot, t.Buffer, t.Size)
}

func encodeTemp(st *state, slot int, p Param, payload []byte) (Kind, error) {
	t := p.(*TempRef)
	st.logger.Debug("temp memref", map[string]any{"slot": slot, "kind": t.Kind().String(), "len": len(payload)})
	if t.Buffer == nil {
		st.logger.Debug("no buffer", map[string]any{"slot": slot})
		return t.Kind(), nil
	}
	copy(payload, t.Buffer[:len(payload)])
	st.dump(slot, payload)
	return t.Kind(), nil
}

func decodeTemp(st *state, slot int, p Param, rec Record) error {
	t := p.(*TempRef)
	if rec.Kind != t.Kind() {
		return newError(CodeBadFormat, slot, "record kind %s, expected %s", rec.Kind, t.Kind())
	}
	capacity := t.Size
	// The reported size may exceed the capacity: that is how a service asks
	// for a larger buffer.
	t.Size = len(rec.Payload)
	st.logger.Debug("temp memref", map[string]any{"slot": slot, "capacity": capacity, "len": t.Size})
	if t.Buffer == nil {
		st.logger.Debug("no buffer", map[string]any{"slot": slot})
		return nil
	}
	writeBack(st, slot, t.Buffer, capacity, rec.Payload)
	return nil
}

// --- registered memory ---

func sizeWhole(_ *state, slot int, p Param) (int, error) {
	w := p.(*WholeRef)
	if w.Parent == nil {
		return 0, newError(CodeBadParameters, slot, "registered memory reference without parent")
	}
	return checkBuffer(slot, w.Parent.Buffer, w.Parent.Size)
}

func encodeWhole(st *state, slot int, p Param, payload []byte) (Kind, error) {
	w := p.(*WholeRef)
	kind, ok := tempKindFor(w.Parent.Flags)
	if !ok {
		return KindUnknown, newError(CodeBadParameters, slot, "shared memory flags 0x%x carry no direction", uint32(w.Parent.Flags))
	}
	st.logger.Debug("whole memref", map[string]any{
		"slot": slot, "kind": kind.String(), "len": len(payload), "flags": fmt.Sprintf("0x%x", uint32(w.Parent.Flags)),
	})
	if w.Parent.Buffer == nil {
		st.logger.Debug("no buffer", map[string]any{"slot": slot})
		return kind, nil
	}
	copy(payload, w.Parent.Buffer[:len(payload)])
	st.dump(slot, payload)
	return kind, nil
}

func decodeWhole(st *state, slot int, p Param, rec Record) error {
	w := p.(*WholeRef)
	if w.Parent == nil {
		return newError(CodeBadParameters, slot, "registered memory reference without parent")
	}
	if w.Parent.Flags&MemOutput == 0 {
		st.logger.Debug("whole memref input only", map[string]any{"slot": slot})
		return nil
	}
	if rec.Kind != KindTempOut && rec.Kind != KindTempInOut {
		return newError(CodeBadParameters, slot, "record kind %s cannot carry registered memory output", rec.Kind)
	}
	w.Size = len(rec.Payload)
	st.logger.Debug("whole memref", map[string]any{"slot": slot, "capacity": w.Parent.Size, "len": w.Size})
	if w.Parent.Buffer == nil {
		st.logger.Debug("no buffer", map[string]any{"slot": slot})
		return nil
	}
	writeBack(st, slot, w.Parent.Buffer, w.Parent.Size, rec.Payload)
	return nil
}

// --- partial registered memory ---

func sizeDefect(_ *state, slot int, p Param) (int, error) {
	panic(&Defect{Slot: slot, Kind: kindOf(p), Phase: phaseEncode})
}

func encodeDefect(_ *state, slot int, p Param, _ []byte) (Kind, error) {
	panic(&Defect{Slot: slot, Kind: kindOf(p), Phase: phaseEncode})
}

func decodeDefect(_ *state, slot int, p Param, _ Record) error {
	panic(&Defect{Slot: slot, Kind: kindOf(p), Phase: phaseDecode})
}

// --- helpers ---

// checkBuffer validates a declared size against an optional source buffer.
func checkBuffer(slot int, buf []byte, size int) (int, error) {
	if size < 0 {
		return 0, newError(CodeBadParameters, slot, "negative size %d", size)
	}
	if buf != nil && len(buf) < size {
		return 0, newError(CodeBadParameters, slot, "size %d exceeds buffer length %d", size, len(buf))
	}
	return size, nil
}

// writeBack copies as much of payload into dst as the destination capacity
// allows. A short copy is reported, not failed.
func writeBack(st *state, slot int, dst []byte, capacity int, payload []byte) {
	n := min(max(capacity, 0), len(payload), len(dst))
	copy(dst[:n], payload)
	st.dump(slot, payload)
	if n < len(payload) {
		st.logger.Info("partial copy", map[string]any{"slot": slot, "copied": n, "len": len(payload)})
		st.collector.IncTruncatedWriteBack()
	}
}
