// Package rpc carries the deepstream wire contract: messages, codec and service stubs.
//
// The messages are encoded by hand with protowire so that they stay byte-compatible
// with peers built from bridge.proto without generated code in this repository.
package rpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every type in this package that travels over the wire.
type Message interface {
	AppendWire(b []byte) []byte
	UnmarshalWire(b []byte) error
}

// VideoFrame is one raw RGB frame sent by an ingest client.
type VideoFrame struct {
	FrameData   []byte
	Width       int32
	Height      int32
	TimestampUS int64
}

// StreamAck is returned once per StreamFrames call.
type StreamAck struct {
	Success bool
	Message string
}

// ResultData wraps one serialized frame record.
type ResultData struct {
	JSONPayload string
	TimestampUS int64
	SourceID    string
}

// Ack is the ResultReceiver reply.
type Ack struct {
	Success bool
}

func (m *VideoFrame) AppendWire(b []byte) []byte {
	b = appendBytes(b, 1, m.FrameData)
	b = appendVarint(b, 2, uint64(int64(m.Width)))
	b = appendVarint(b, 3, uint64(int64(m.Height)))
	b = appendVarint(b, 4, uint64(m.TimestampUS))
	return b
}

func (m *VideoFrame) UnmarshalWire(b []byte) error {
	*m = VideoFrame{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				m.FrameData = append([]byte(nil), v...)
			}
			return n
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Width = int32(v)
			return n
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Height = int32(v)
			return n
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.TimestampUS = int64(v)
			return n
		}
		return skipField
	})
}

func (m *StreamAck) AppendWire(b []byte) []byte {
	b = appendVarint(b, 1, protowire.EncodeBool(m.Success))
	b = appendString(b, 2, m.Message)
	return b
}

func (m *StreamAck) UnmarshalWire(b []byte) error {
	*m = StreamAck{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Success = protowire.DecodeBool(v)
			return n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Message = v
			return n
		}
		return skipField
	})
}

func (m *ResultData) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.JSONPayload)
	b = appendVarint(b, 2, uint64(m.TimestampUS))
	b = appendString(b, 3, m.SourceID)
	return b
}

func (m *ResultData) UnmarshalWire(b []byte) error {
	*m = ResultData{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.JSONPayload = v
			return n
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.TimestampUS = int64(v)
			return n
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.SourceID = v
			return n
		}
		return skipField
	})
}

func (m *Ack) AppendWire(b []byte) []byte {
	return appendVarint(b, 1, protowire.EncodeBool(m.Success))
}

func (m *Ack) UnmarshalWire(b []byte) error {
	*m = Ack{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			m.Success = protowire.DecodeBool(v)
			return n
		}
		return skipField
	})
}

// proto3 leaves zero values off the wire.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

const skipField = -1 << 30

// decodeFields walks the tagged fields of b. field consumes a known field's value and
// returns the byte count (negative on error), or skipField for unknown fields.
func decodeFields(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("rpc: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n = field(num, typ, b)
		if n == skipField {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("rpc: invalid field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
