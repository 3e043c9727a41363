package auth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Signature prefixes every NTLM message.
var Signature = [8]byte{'N', 'T', 'L', 'M', 'S', 'S', 'P', 0}

// NTLM message types.
const (
	MessageNegotiate    uint32 = 1
	MessageChallenge    uint32 = 2
	MessageAuthenticate uint32 = 3
)

// challengeFixedLen is the size of a CHALLENGE_MESSAGE without the optional
// VERSION field and payload.
const challengeFixedLen = 48

// AvID identifies an attribute/value pair in the target information block.
type AvID uint16

// AV pair identifiers ([MS-NLMP] 2.2.2.1).
const (
	AvEOL AvID = iota
	AvNbComputerName
	AvNbDomainName
	AvDNSComputerName
	AvDNSDomainName
	AvDNSTreeName
	AvFlags
	AvTimestamp
	AvSingleHost
	AvTargetName
	AvChannelBindings
)

// AvPairs is the decoded target information block.
type AvPairs map[AvID][]byte

func (pairs AvPairs) unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	for {
		var id AvID
		var l uint16
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return err
		}
		if id == AvEOL {
			return nil
		}
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return err
		}
		if int(l) > r.Len() {
			return fmt.Errorf("av pair %d: length %d exceeds remaining %d bytes", id, l, r.Len())
		}
		value := make([]byte, l)
		if _, err := r.Read(value); err != nil {
			return err
		}
		pairs[id] = value
	}
}

// marshal writes the pairs in identifier order followed by the EOL marker.
func (pairs AvPairs) marshal() []byte {
	var buf bytes.Buffer
	for id := AvNbComputerName; id <= AvChannelBindings; id++ {
		value, ok := pairs[id]
		if !ok {
			continue
		}
		_ = binary.Write(&buf, binary.LittleEndian, id)
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(value)))
		buf.Write(value)
	}
	buf.Write([]byte{0, 0, 0, 0})
	return buf.Bytes()
}

// ChallengeMessage is the decoded server CHALLENGE_MESSAGE.
type ChallengeMessage struct {
	Flags           NegotiateFlags
	ServerChallenge [8]byte
	TargetName      string
	TargetInfo      AvPairs
}

// ParseChallenge decodes and validates a CHALLENGE_MESSAGE. Any structural
// problem is reported as a *ProtocolError.
func ParseChallenge(data []byte) (*ChallengeMessage, error) {
	if len(data) < challengeFixedLen {
		return nil, protocolErrorf("challenge too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], Signature[:]) {
		return nil, protocolErrorf("bad signature %q", data[:8])
	}
	if t := binary.LittleEndian.Uint32(data[8:12]); t != MessageChallenge {
		return nil, protocolErrorf("unexpected message type %d", t)
	}

	cm := &ChallengeMessage{
		Flags: NegotiateFlags(binary.LittleEndian.Uint32(data[20:24])),
	}
	copy(cm.ServerChallenge[:], data[24:32])

	name, err := readVarField(data, 12)
	if err != nil {
		return nil, protocolErrorf("target name: %v", err)
	}
	if cm.Flags.Has(FlagNegotiateUnicode) {
		cm.TargetName = fromUnicode(name)
	} else {
		cm.TargetName = string(name)
	}

	info, err := readVarField(data, 40)
	if err != nil {
		return nil, protocolErrorf("target info: %v", err)
	}
	if len(info) > 0 {
		cm.TargetInfo = make(AvPairs)
		if err := cm.TargetInfo.unmarshal(info); err != nil {
			return nil, protocolErrorf("target info: %v", err)
		}
	}
	return cm, nil
}

// MarshalBinary encodes the message with the payload directly after the
// fixed header. Used by test servers.
func (cm ChallengeMessage) MarshalBinary() ([]byte, error) {
	name := []byte(cm.TargetName)
	if cm.Flags.Has(FlagNegotiateUnicode) {
		name = toUnicode(cm.TargetName)
	}
	var info []byte
	if cm.TargetInfo != nil {
		info = cm.TargetInfo.marshal()
	}

	buf := bytes.NewBuffer(make([]byte, 0, challengeFixedLen+len(name)+len(info)))
	buf.Write(Signature[:])
	_ = binary.Write(buf, binary.LittleEndian, MessageChallenge)
	writeVarField(buf, len(name), challengeFixedLen)
	_ = binary.Write(buf, binary.LittleEndian, uint32(cm.Flags))
	buf.Write(cm.ServerChallenge[:])
	buf.Write(make([]byte, 8))
	writeVarField(buf, len(info), challengeFixedLen+len(name))
	buf.Write(name)
	buf.Write(info)
	return buf.Bytes(), nil
}

// readVarField resolves the length/offset descriptor at pos.
func readVarField(data []byte, pos int) ([]byte, error) {
	l := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	off := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
	if l == 0 {
		return nil, nil
	}
	if off < challengeFixedLen || off+l > len(data) {
		return nil, fmt.Errorf("field [%d:%d] outside message of %d bytes", off, off+l, len(data))
	}
	return data[off : off+l], nil
}

func writeVarField(buf *bytes.Buffer, length, offset int) {
	_ = binary.Write(buf, binary.LittleEndian, uint16(length))
	_ = binary.Write(buf, binary.LittleEndian, uint16(length))
	_ = binary.Write(buf, binary.LittleEndian, uint32(offset))
}

// toUnicode encodes s as UTF-16LE.
func toUnicode(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}

// fromUnicode decodes UTF-16LE, ignoring a trailing odd byte.
func fromUnicode(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}
