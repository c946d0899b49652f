package simconnect

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize      = 16
	ProtocolVersion = 4

	// Outbound commands.
	MsgOpen                 = 0x0001
	MsgClose                = 0x0002
	MsgRequestData          = 0x0003
	MsgSetDataDefinition    = 0x0004
	MsgAddToDataDef         = 0x0005
	MsgRequestDataByType    = 0x0006
	MsgSubscribeSystemEvent = 0x0007
	MsgRequestSystemState   = 0x0008

	// Inbound messages.
	MsgSimObjectData       = 0x0100
	MsgException           = 0x0101
	MsgRecvOpen            = 0x0102
	MsgQuit                = 0x0103
	MsgEvent               = 0x0104
	MsgSimObjectDataByType = 0x0105
	MsgSystemState         = 0x0106
)

// Header represents a SimConnect message header.
type Header struct {
	Size    uint32
	Version uint32
	Type    uint32
	ID      uint32
}

// EncodeHeader builds a 16-byte little-endian header for a SimConnect message.
// The Size field is set to HeaderSize + payloadSize.
func EncodeHeader(msgType, msgID uint32, payloadSize int) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(HeaderSize)+uint32(payloadSize)) //nolint:gosec // payloads are far below 4 GiB
	binary.LittleEndian.PutUint32(buf[4:8], ProtocolVersion)
	binary.LittleEndian.PutUint32(buf[8:12], msgType)
	binary.LittleEndian.PutUint32(buf[12:16], msgID)
	return buf
}

// DecodeHeader parses a 16-byte little-endian header from raw bytes.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: got %d bytes, need %d", len(data), HeaderSize)
	}
	h := Header{
		Size:    binary.LittleEndian.Uint32(data[0:4]),
		Version: binary.LittleEndian.Uint32(data[4:8]),
		Type:    binary.LittleEndian.Uint32(data[8:12]),
		ID:      binary.LittleEndian.Uint32(data[12:16]),
	}
	if h.Size < HeaderSize {
		return Header{}, fmt.Errorf("invalid message size %d", h.Size)
	}
	return h, nil
}

// RecvException is the payload of an inbound exception message.
type RecvException struct {
	Exception uint32
	SendID    uint32
	Index     uint32
}

// RecvEvent is the payload of a subscribed system event.
type RecvEvent struct {
	GroupID uint32
	EventID uint32
	Data    uint32
}

// RecvSimObjectData is the fixed prefix of SimObjectData and SimObjectDataByType
// messages. Record bytes follow immediately after it.
type RecvSimObjectData struct {
	RequestID   uint32
	ObjectID    uint32
	DefineID    uint32
	Flags       uint32
	EntryNumber uint32
	OutOf       uint32
	DefineCount uint32
}

// RecvSystemState is the payload of a system state response.
type RecvSystemState struct {
	RequestID uint32
	Integer   uint32
	Float     float32
	String    string
}

const (
	recvExceptionSize   = 12
	recvEventSize       = 12
	recvSimObjectSize   = 28
	systemStateStrLen   = 260
	recvSystemStateSize = 12 + systemStateStrLen
	openAppNameLen      = 256
)

// DecodeException parses an exception payload.
func DecodeException(data []byte) (RecvException, error) {
	if len(data) < recvExceptionSize {
		return RecvException{}, fmt.Errorf("%w: exception: got %d bytes, need %d", ErrMalformedRecord, len(data), recvExceptionSize)
	}
	return RecvException{
		Exception: binary.LittleEndian.Uint32(data[0:4]),
		SendID:    binary.LittleEndian.Uint32(data[4:8]),
		Index:     binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// DecodeEvent parses a system event payload.
func DecodeEvent(data []byte) (RecvEvent, error) {
	if len(data) < recvEventSize {
		return RecvEvent{}, fmt.Errorf("%w: event: got %d bytes, need %d", ErrMalformedRecord, len(data), recvEventSize)
	}
	return RecvEvent{
		GroupID: binary.LittleEndian.Uint32(data[0:4]),
		EventID: binary.LittleEndian.Uint32(data[4:8]),
		Data:    binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// DecodeSimObjectData splits a SimObjectData payload into its prefix and record bytes.
func DecodeSimObjectData(data []byte) (RecvSimObjectData, []byte, error) {
	if len(data) < recvSimObjectSize {
		return RecvSimObjectData{}, nil, fmt.Errorf("%w: simobject data: got %d bytes, need %d", ErrMalformedRecord, len(data), recvSimObjectSize)
	}
	u := func(i int) uint32 { return binary.LittleEndian.Uint32(data[i*4 : i*4+4]) }
	return RecvSimObjectData{
		RequestID:   u(0),
		ObjectID:    u(1),
		DefineID:    u(2),
		Flags:       u(3),
		EntryNumber: u(4),
		OutOf:       u(5),
		DefineCount: u(6),
	}, data[recvSimObjectSize:], nil
}

// DecodeSystemState parses a system state payload.
func DecodeSystemState(data []byte) (RecvSystemState, error) {
	if len(data) < 12 {
		return RecvSystemState{}, fmt.Errorf("%w: system state: got %d bytes, need at least 12", ErrMalformedRecord, len(data))
	}
	s := RecvSystemState{
		RequestID: binary.LittleEndian.Uint32(data[0:4]),
		Integer:   binary.LittleEndian.Uint32(data[4:8]),
		Float:     float32FromBits(binary.LittleEndian.Uint32(data[8:12])),
	}
	end := min(len(data), recvSystemStateSize)
	s.String = cString(data[12:end])
	return s, nil
}

// DecodeOpenAppName returns the simulator application name from an Open payload.
func DecodeOpenAppName(data []byte) string {
	return cString(data[:min(len(data), openAppNameLen)])
}
