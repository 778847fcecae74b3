package twoparty

import "io"

// Codec is the external message-framing collaborator (spec §1, §6
// "Wire framing"): it owns the segment-table/segment-payload
// representation of a capnp message and the length-prefixed framing
// that lets one be read off, or written onto, a byte stream. This
// package never inspects a message body; it only moves whatever Codec
// hands it between the send queue and the wire.
//
// A real implementation of this seam lives in the serialization
// library this module composes with (out of scope here, per spec §1);
// Codec exists so Connection and the send queue have something
// concrete to compile against.
type Codec interface {
	// NewMessage allocates a fresh, empty message whose first segment
	// is sized per firstSegmentWordHint words. The returned value is
	// the codec's own builder type; opaque to this package.
	NewMessage(firstSegmentWordHint uint32) any

	// ReadMessage reads one length-prefixed message from r. Returns
	// io.EOF on a clean end of stream.
	ReadMessage(r io.Reader) (any, error)

	// WriteMessage writes one message's current contents to w,
	// including its length prefix.
	WriteMessage(w io.Writer, body any) error
}
