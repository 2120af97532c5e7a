package codec

// Encode marshals op into a newly allocated parameter buffer whose length is
// exactly the sum of its record sizes.
//
// A nil op encodes a call without parameters: ParamCount empty records.
// On error no buffer is returned.
//
// Encode panics with a *Defect if op contains a PartialRef.
func Encode(op *Operation, opts ...Option) ([]byte, error) {
	st := newState(phaseEncode, opts)
	if op == nil {
		st.logger.Debug("no params", nil)
		op = &Operation{}
	}

	buf, err := encode(st, op)
	if err != nil {
		st.failed(err)
		return nil, err
	}

	st.collector.IncEncode(len(buf))
	return buf, nil
}

func encode(st *state, op *Operation) ([]byte, error) {
	var (
		entries [ParamCount]kindEntry
		sizes   [ParamCount]int
	)

	// Sizing pass. The write pass below trusts these sizes and performs no
	// bounds checks of its own.
	total := uint64(ParamCount * HeaderSize)
	for i, p := range op.Params {
		e, _, err := entryFor(i, p)
		if err != nil {
			return nil, err
		}
		n, err := e.size(st, i, p)
		if err != nil {
			return nil, err
		}
		entries[i] = e
		sizes[i] = n
		total += uint64(n)
	}
	if total > st.maxBufferSize {
		return nil, newError(CodeOutOfMemory, -1, "buffer of %d bytes exceeds limit %d", total, st.maxBufferSize)
	}

	buf := make([]byte, int(total))
	off := 0
	for i, p := range op.Params {
		n := sizes[i]
		payload := buf[off+HeaderSize : off+HeaderSize+n : off+HeaderSize+n]
		kind, err := entries[i].encode(st, i, p, payload)
		if err != nil {
			return nil, err
		}
		putHeader(buf[off:off+HeaderSize], kind, uint32(n))
		off += HeaderSize + n
	}
	return buf, nil
}
