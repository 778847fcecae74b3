package twoparty

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// lineCodec is a trivial Codec fixture for tests: each message is a
// string body, framed as a 4-byte little-endian length prefix followed
// by the UTF-8 bytes. It exists only to give Connection/sendQueue
// something concrete to read and write in tests; it is not a capnp
// codec.
type lineCodec struct{}

var _ Codec = lineCodec{}

func (lineCodec) NewMessage(firstSegmentWordHint uint32) any {
	return ""
}

func (lineCodec) ReadMessage(r io.Reader) (any, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return string(buf), nil
}

func (lineCodec) WriteMessage(w io.Writer, body any) error {
	s, ok := body.(string)
	if !ok {
		return fmt.Errorf("lineCodec: unsupported body type %T", body)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	_, err := w.Write(buf.Bytes())
	return err
}
