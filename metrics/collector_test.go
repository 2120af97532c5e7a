package metrics

import (
	"sync"
	"testing"
)

func TestCollector_CodecCounters(t *testing.T) {
	c := NewCollector("exec", 0x81)

	c.IncEncode(48)
	c.IncEncode(16)
	c.IncEncodeFailure("BAD_PARAMETERS")
	c.IncDecode(48)
	c.IncDecodeFailure("BAD_FORMAT")
	c.IncDecodeFailure("BAD_FORMAT")
	c.IncDecodeFailure("EXCESS_DATA")
	c.IncTruncatedWriteBack()

	s := c.Snapshot()

	if s.EncodeCalls != 2 {
		t.Errorf("EncodeCalls = %d, want 2", s.EncodeCalls)
	}
	if s.EncodedBytes != 64 {
		t.Errorf("EncodedBytes = %d, want 64", s.EncodedBytes)
	}
	if s.EncodeFailures != 1 {
		t.Errorf("EncodeFailures = %d, want 1", s.EncodeFailures)
	}
	if s.EncodeFailuresByCode["BAD_PARAMETERS"] != 1 {
		t.Errorf("EncodeFailuresByCode[BAD_PARAMETERS] = %d, want 1", s.EncodeFailuresByCode["BAD_PARAMETERS"])
	}
	if s.DecodeCalls != 1 || s.DecodedBytes != 48 {
		t.Errorf("DecodeCalls/DecodedBytes = %d/%d, want 1/48", s.DecodeCalls, s.DecodedBytes)
	}
	if s.DecodeFailures != 3 {
		t.Errorf("DecodeFailures = %d, want 3", s.DecodeFailures)
	}
	if s.DecodeFailuresByCode["BAD_FORMAT"] != 2 {
		t.Errorf("DecodeFailuresByCode[BAD_FORMAT] = %d, want 2", s.DecodeFailuresByCode["BAD_FORMAT"])
	}
	if s.TruncatedWriteBacks != 1 {
		t.Errorf("TruncatedWriteBacks = %d, want 1", s.TruncatedWriteBacks)
	}
}

func TestCollector_CallCounters(t *testing.T) {
	c := NewCollector("unix", 1)

	c.IncInvoke()
	c.IncInvoke()
	c.IncInvoke()
	c.IncTransportFailure()
	c.IncServiceError("SHORT_BUFFER")
	c.IncCaptureWriteSuccess()
	c.IncCaptureWriteFailure()

	s := c.Snapshot()

	if s.Invocations != 3 {
		t.Errorf("Invocations = %d, want 3", s.Invocations)
	}
	if s.InvokeFailures != 2 {
		t.Errorf("InvokeFailures = %d, want 2", s.InvokeFailures)
	}
	if s.TransportFailures != 1 {
		t.Errorf("TransportFailures = %d, want 1", s.TransportFailures)
	}
	if s.ServiceErrors["SHORT_BUFFER"] != 1 {
		t.Errorf("ServiceErrors[SHORT_BUFFER] = %d, want 1", s.ServiceErrors["SHORT_BUFFER"])
	}
	if s.CaptureWriteSuccess != 1 || s.CaptureWriteFailure != 1 {
		t.Errorf("capture counters = %d/%d, want 1/1", s.CaptureWriteSuccess, s.CaptureWriteFailure)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("tcp", 0x81)
	s := c.Snapshot()

	if s.Transport != "tcp" {
		t.Errorf("Transport = %q, want %q", s.Transport, "tcp")
	}
	if s.Session != 0x81 {
		t.Errorf("Session = %#x, want 0x81", s.Session)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("", 0)
	c.IncEncode(8)
	c.IncDecodeFailure("BAD_FORMAT")

	s1 := c.Snapshot()

	c.IncEncode(8)
	c.IncDecodeFailure("BAD_FORMAT")

	if s1.EncodeCalls != 1 {
		t.Errorf("s1.EncodeCalls = %d, want 1 (snapshot should be frozen)", s1.EncodeCalls)
	}
	if s1.DecodeFailuresByCode["BAD_FORMAT"] != 1 {
		t.Errorf("s1.DecodeFailuresByCode[BAD_FORMAT] = %d, want 1", s1.DecodeFailuresByCode["BAD_FORMAT"])
	}

	// Mutating a snapshot map must not leak into the collector
	s1.DecodeFailuresByCode["injected"] = 1
	s2 := c.Snapshot()
	if _, ok := s2.DecodeFailuresByCode["injected"]; ok {
		t.Error("DecodeFailuresByCode should not contain key injected through a snapshot")
	}
	if s2.EncodeCalls != 2 {
		t.Errorf("s2.EncodeCalls = %d, want 2", s2.EncodeCalls)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncEncode(1)
	c.IncEncodeFailure("GENERIC")
	c.IncDecode(1)
	c.IncDecodeFailure("GENERIC")
	c.IncTruncatedWriteBack()
	c.IncInvoke()
	c.IncTransportFailure()
	c.IncServiceError("GENERIC")
	c.IncCaptureWriteSuccess()
	c.IncCaptureWriteFailure()

	s := c.Snapshot()
	if s.EncodeCalls != 0 {
		t.Errorf("nil collector snapshot EncodeCalls = %d, want 0", s.EncodeCalls)
	}
	if s.ServiceErrors != nil {
		t.Errorf("nil collector snapshot ServiceErrors should be nil, got %v", s.ServiceErrors)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("", 0)
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncEncode(8)
				c.IncDecodeFailure("EXCESS_DATA")
				c.IncInvoke()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.EncodeCalls != want {
		t.Errorf("EncodeCalls = %d, want %d", s.EncodeCalls, want)
	}
	if s.EncodedBytes != 8*want {
		t.Errorf("EncodedBytes = %d, want %d", s.EncodedBytes, 8*want)
	}
	if s.DecodeFailuresByCode["EXCESS_DATA"] != want {
		t.Errorf("DecodeFailuresByCode[EXCESS_DATA] = %d, want %d", s.DecodeFailuresByCode["EXCESS_DATA"], want)
	}
	if s.Invocations != want {
		t.Errorf("Invocations = %d, want %d", s.Invocations, want)
	}
}
