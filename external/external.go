// Package external declares the integration seams corebridge sits
// between, without implementing any of them: a pickle-style object codec,
// numeric cube storage, a message transport, and generic container
// wrappers. Nothing in this module depends on these interfaces — they
// exist so a caller embedding lockmgr and cuckoomap alongside those
// systems has a named contract to implement against.
package external

import "context"

// PickleCodec encodes and decodes values exchanged with the surrounding
// host/scripting runtime.
type PickleCodec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// NumericCube is a multi-dimensional numeric array the surrounding
// runtime may use for bulk data exchange.
type NumericCube interface {
	Shape() []int
	At(idx ...int) (float64, bool)
}

// Transport carries encoded frames to and from a remote peer.
type Transport interface {
	Send(ctx context.Context, b []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// ContainerWrapper exposes a generic collection's length and underlying
// value without committing to its concrete type.
type ContainerWrapper interface {
	Len() int
	Unwrap() any
}
