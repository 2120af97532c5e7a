package codec

// Decode applies a response buffer to the output-capable slots of op.
//
// Slots are matched to records by position and dispatched on the kind held
// by op, not on the record's kind; the record kind is only checked for
// consistency. A nil op has nothing to receive and returns nil without
// reading buf.
//
// Decode is not transactional: when it fails, slots before the failing one
// have already been updated and slots after it are untouched.
//
// Decode panics with a *Defect if op contains a PartialRef.
func Decode(op *Operation, buf []byte, opts ...Option) error {
	st := newState(phaseDecode, opts)
	if op == nil {
		st.logger.Debug("no params", nil)
		return nil
	}
	if buf == nil {
		err := newError(CodeBadParameters, -1, "no buffer to decode")
		st.failed(err)
		return err
	}

	if err := decode(st, op, buf); err != nil {
		st.failed(err)
		return err
	}

	st.collector.IncDecode(len(buf))
	return nil
}

func decode(st *state, op *Operation, buf []byte) error {
	off := 0
	for i, p := range op.Params {
		// readRecord rejects any record not wholly inside buf, so a corrupt
		// length can move the cursor past the end but never read there.
		rec, next, err := readRecord(buf, off, i)
		if err != nil {
			return err
		}
		e, _, err := entryFor(i, p)
		if err != nil {
			return err
		}
		if err := e.decode(st, i, p, rec); err != nil {
			return err
		}
		off = next
	}
	return nil
}
