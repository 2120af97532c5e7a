package reader

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/justapithecus/teewire/capture"
	"github.com/justapithecus/teewire/cli/config"
	"github.com/justapithecus/teewire/codec"
	"github.com/justapithecus/teewire/ipc"
	"github.com/justapithecus/teewire/metrics"
)

// PreviewBytes is how many payload bytes a view shows before eliding.
const PreviewBytes = 32

// CaptureReader is the read side of a capture store.
// *capture.Store implements it.
type CaptureReader interface {
	List(ctx context.Context, f capture.Filter) ([]*capture.Record, error)
	Get(ctx context.Context, id string) (*capture.Record, error)
}

var _ CaptureReader = (*capture.Store)(nil)

// InspectBuffer splits buf into records. A malformed buffer still lists
// the records read before the fault, with the fault in Error.
func InspectBuffer(source string, buf []byte) *InspectBufferResponse {
	recs, end, err := codec.ScanRecords(buf)
	resp := &InspectBufferResponse{
		Source:   source,
		Size:     len(buf),
		Records:  make([]RecordView, 0, len(recs)),
		Trailing: len(buf) - end,
	}
	for i, r := range recs {
		resp.Records = append(resp.Records, recordView(i, r))
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func recordView(slot int, r codec.Record) RecordView {
	v := RecordView{Slot: slot, Kind: r.Kind.String(), Length: len(r.Payload)}
	switch r.Kind {
	case codec.KindValueIn, codec.KindValueOut, codec.KindValueInOut:
		if len(r.Payload) == codec.ValueSize {
			a := binary.LittleEndian.Uint32(r.Payload[0:4])
			b := binary.LittleEndian.Uint32(r.Payload[4:8])
			v.A, v.B = &a, &b
			return v
		}
	}
	v.Data = Preview(r.Payload)
	return v
}

// ViewOperation describes the current state of a built operation.
func ViewOperation(op *config.Operation) *OperationResponse {
	names := make(map[*codec.SharedMemory]string, len(op.Shared))
	for name, shm := range op.Shared {
		names[shm] = name
	}

	resp := &OperationResponse{Slots: make([]SlotView, 0, codec.ParamCount)}
	for i, p := range op.Op.Params {
		resp.Slots = append(resp.Slots, slotView(i, p, names))
	}
	for _, name := range op.SharedNames() {
		shm := op.Shared[name]
		resp.Shared = append(resp.Shared, SharedView{
			Name:  name,
			Flags: FlagString(shm.Flags),
			Size:  shm.Size,
			Data:  Preview(shm.Buffer),
		})
	}
	return resp
}

func slotView(slot int, p codec.Param, names map[*codec.SharedMemory]string) SlotView {
	if p == nil {
		return SlotView{Slot: slot, Kind: codec.KindNone.String()}
	}
	v := SlotView{Slot: slot, Kind: p.Kind().String()}
	switch p := p.(type) {
	case *codec.Value:
		a, b := p.A, p.B
		v.A, v.B = &a, &b
	case *codec.TempRef:
		v.Size = p.Size
		if p.Buffer != nil {
			v.Data = Preview(p.Buffer[:min(p.Size, len(p.Buffer))])
		}
	case *codec.WholeRef:
		v.Size = p.Size
		v.Shm = names[p.Parent]
	}
	return v
}

// CaptureList converts stored captures into list rows.
func CaptureList(recs []*capture.Record) []CaptureListItem {
	items := make([]CaptureListItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, CaptureListItem{
			ID:        r.ID,
			CallID:    r.CallID,
			Session:   fmt.Sprintf("0x%08x", r.Session),
			Command:   r.Command,
			Direction: string(r.Direction),
			Result:    r.Result,
			Size:      r.Size,
			Ts:        r.Ts,
		})
	}
	return items
}

// CaptureDetail describes one capture with its parsed buffer.
func CaptureDetail(r *capture.Record) *CaptureDetailResponse {
	origin := ""
	if r.Origin != 0 {
		origin = ipc.OriginName(r.Origin)
	}
	return &CaptureDetailResponse{
		ID:        r.ID,
		CallID:    r.CallID,
		Session:   fmt.Sprintf("0x%08x", r.Session),
		Command:   r.Command,
		Direction: string(r.Direction),
		Result:    r.Result,
		Origin:    origin,
		Size:      r.Size,
		Day:       r.Day,
		Ts:        r.Ts,
		Buffer:    InspectBuffer("capture:"+r.ID, r.Data),
	}
}

// Metrics flattens a metrics snapshot.
func Metrics(s metrics.Snapshot) *MetricsResponse {
	errs := s.ServiceErrors
	if errs == nil {
		errs = map[string]int64{}
	}
	return &MetricsResponse{
		Transport:           s.Transport,
		Session:             fmt.Sprintf("0x%08x", s.Session),
		EncodeCalls:         s.EncodeCalls,
		EncodeFailures:      s.EncodeFailures,
		EncodedBytes:        s.EncodedBytes,
		DecodeCalls:         s.DecodeCalls,
		DecodeFailures:      s.DecodeFailures,
		DecodedBytes:        s.DecodedBytes,
		TruncatedWriteBacks: s.TruncatedWriteBacks,
		Invocations:         s.Invocations,
		TransportFailures:   s.TransportFailures,
		ServiceErrors:       errs,
		CaptureWrites:       s.CaptureWriteSuccess,
		CaptureFailures:     s.CaptureWriteFailure,
	}
}

// Preview hex-encodes up to PreviewBytes of b, marking elided bytes.
func Preview(b []byte) string {
	if len(b) <= PreviewBytes {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:PreviewBytes]) + fmt.Sprintf("...(+%d)", len(b)-PreviewBytes)
}

// FlagString renders shared memory flags as "input", "output", "inout" or "none".
func FlagString(f codec.MemFlags) string {
	var parts []string
	if f&codec.MemInput != 0 {
		parts = append(parts, "input")
	}
	if f&codec.MemOutput != 0 {
		parts = append(parts, "output")
	}
	switch len(parts) {
	case 0:
		return "none"
	case 2:
		return "inout"
	default:
		return strings.Join(parts, "")
	}
}
