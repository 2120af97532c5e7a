// Package codec marshals TEE client call parameters into the flat record
// buffer exchanged with a service domain, and writes the service's results
// back into the caller's parameters.
//
// A buffer is always ParamCount records, one per slot:
//
//	kind (u32) | length (u32) | payload (length bytes)
//
// Registered memory (WholeRef) is sent as the temporary buffer kind matching
// its parent's flags, since services only understand value and temporary
// buffer kinds. Decode still dispatches on the caller's original kinds.
//
// Encode and Decode hold no state between calls. Concurrent calls on
// distinct operations are safe; calls sharing an Operation or a SharedMemory
// need external synchronization.
package codec
