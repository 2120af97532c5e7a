package codec

// Operation is the parameter list of a single call. It is owned by the
// caller; Decode writes results back into its output-capable slots.
//
// A nil slot is equivalent to &None{}.
type Operation struct {
	Params [ParamCount]Param
}

// Param is one parameter slot. The set of implementations is closed:
// None, Value, TempRef, WholeRef and PartialRef.
type Param interface {
	// Kind returns the slot's parameter kind. Malformed parameters report
	// KindUnknown.
	Kind() Kind

	param()
}

// None is an unused slot. It still occupies a zero-length record on the wire.
type None struct{}

// Value carries two 32-bit integers.
type Value struct {
	Dir Direction
	A   uint32
	B   uint32
}

// TempRef references a caller buffer for the duration of one call.
//
// Size is the declared capacity sent to the service. After Decode it holds
// the size reported back, which may exceed the capacity when the service
// needs a larger buffer. A nil Buffer sends Size zero bytes and receives
// only the size.
type TempRef struct {
	Dir    Direction
	Buffer []byte
	Size   int
}

// SharedMemory is a registered memory object. Several slots may reference
// the same object; its Flags decide the data direction.
type SharedMemory struct {
	Buffer []byte
	Size   int
	Flags  MemFlags
}

// WholeRef references an entire SharedMemory object. Size receives the size
// reported back by the service.
type WholeRef struct {
	Parent *SharedMemory
	Size   int
}

// PartialRef references a window of a SharedMemory object. The wire format
// has no encoding for it; passing one to Encode or Decode panics with a
// *Defect.
type PartialRef struct {
	Dir    Direction
	Parent *SharedMemory
	Offset int
	Size   int
}

// Kind implements Param.
func (*None) Kind() Kind { return KindNone }

// Kind implements Param.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindUnknown
	}
	return directed(v.Dir, KindValueIn, KindValueOut, KindValueInOut)
}

// Kind implements Param.
func (t *TempRef) Kind() Kind {
	if t == nil {
		return KindUnknown
	}
	return directed(t.Dir, KindTempIn, KindTempOut, KindTempInOut)
}

// Kind implements Param.
func (w *WholeRef) Kind() Kind {
	if w == nil {
		return KindUnknown
	}
	return KindWhole
}

// Kind implements Param.
func (p *PartialRef) Kind() Kind {
	if p == nil {
		return KindUnknown
	}
	return directed(p.Dir, KindPartialIn, KindPartialOut, KindPartialInOut)
}

func (*None) param()       {}
func (*Value) param()      {}
func (*TempRef) param()    {}
func (*WholeRef) param()   {}
func (*PartialRef) param() {}

// kindOf resolves the kind of a slot, treating an empty slot as None.
func kindOf(p Param) Kind {
	if p == nil {
		return KindNone
	}
	return p.Kind()
}

// Kinds returns the kind of every slot in op.
func (op *Operation) Kinds() [ParamCount]Kind {
	var kinds [ParamCount]Kind
	for i, p := range op.Params {
		kinds[i] = kindOf(p)
	}
	return kinds
}
