package auth

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validChallengeMessage is a minimal CHALLENGE_MESSAGE with target name
// "DOMAIN" and no target info.
func validChallengeMessage() []byte {
	return []byte{
		0x4e, 0x54, 0x4c, 0x4d, 0x53, 0x53, 0x50, 0x00, // NTLMSSP signature
		0x02, 0x00, 0x00, 0x00, // Message type (CHALLENGE = 2)
		0x0c, 0x00, 0x0c, 0x00, // Target name length
		0x38, 0x00, 0x00, 0x00, // Target name offset
		0x01, 0x82, 0x88, 0xa2, // Negotiate flags
		0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, // Challenge
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // Reserved
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // Target info
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // Version
		0x44, 0x00, 0x4f, 0x00, 0x4d, 0x00, 0x41, 0x00, // "DOMAIN" in UTF-16LE
		0x49, 0x00, 0x4e, 0x00,
	}
}

func TestParseChallenge(t *testing.T) {
	cm, err := ParseChallenge(validChallengeMessage())
	require.NoError(t, err)

	assert.Equal(t, "DOMAIN", cm.TargetName)
	assert.Equal(t, [8]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}, cm.ServerChallenge)
	assert.True(t, cm.Flags.Has(FlagNegotiateUnicode))
	assert.True(t, cm.Flags.Has(FlagNegotiateNTLM))
	assert.Nil(t, cm.TargetInfo)
}

func TestChallengeMessage_MarshalParse(t *testing.T) {
	in := ChallengeMessage{
		Flags:           DefaultChallengeFlags,
		ServerChallenge: [8]byte{8, 7, 6, 5, 4, 3, 2, 1},
		TargetName:      "CONTOSO",
		TargetInfo: AvPairs{
			AvNbDomainName: toUnicode("CONTOSO"),
			AvTimestamp:    {1, 2, 3, 4, 5, 6, 7, 8},
		},
	}
	data, err := in.MarshalBinary()
	require.NoError(t, err)

	out, err := ParseChallenge(data)
	require.NoError(t, err)
	assert.Equal(t, in.Flags, out.Flags)
	assert.Equal(t, in.ServerChallenge, out.ServerChallenge)
	assert.Equal(t, "CONTOSO", out.TargetName)
	assert.Equal(t, "CONTOSO", fromUnicode(out.TargetInfo[AvNbDomainName]))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out.TargetInfo[AvTimestamp])
}

func TestParseChallenge_Malformed(t *testing.T) {
	valid := validChallengeMessage()

	badSignature := append([]byte(nil), valid...)
	badSignature[0] = 'X'

	wrongType := append([]byte(nil), valid...)
	wrongType[8] = 0x03

	outOfBounds := append([]byte(nil), valid...)
	outOfBounds[12] = 0xff // target name length past the end

	truncatedInfo := append([]byte(nil), valid...)
	truncatedInfo[40] = 0x04 // target info length 4 at offset 0x38
	truncatedInfo[44] = 0x38
	truncatedInfo[56] = 0x02 // AvNbDomainName
	truncatedInfo[57] = 0x00
	truncatedInfo[58] = 0x10 // claims 16 bytes, none follow

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", valid[:47]},
		{"bad signature", badSignature},
		{"wrong message type", wrongType},
		{"field out of bounds", outOfBounds},
		{"truncated av pair", truncatedInfo},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseChallenge(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrProtocol), "error %v should match ErrProtocol", err)

			var pe *ProtocolError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestMarshalAvPairs(t *testing.T) {
	tests := []struct {
		name     string
		input    AvPairs
		expected []byte
	}{
		{"empty", AvPairs{}, []byte{0x00, 0x00, 0x00, 0x00}},
		{"with 2 pairs",
			AvPairs{
				AvTargetName:   []byte{0, 0},
				AvNbDomainName: []byte{1, 1, 1, 1},
			},
			[]byte{
				0x02, 0x00, 0x04, 0x00, 0x01, 0x01, 0x01, 0x01, // AvNbDomainName, len(4)
				0x09, 0x00, 0x02, 0x00, 0x00, 0x00, // AvTargetName, len(2)
				0x00, 0x00, 0x00, 0x00}, // AvEOL, len(0)
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.input.marshal())

			parsed := AvPairs{}
			require.NoError(t, parsed.unmarshal(tc.expected))
			assert.Equal(t, tc.input, parsed)
		})
	}
}

func TestNTLMCodec(t *testing.T) {
	codec := NTLMCodec{Workstation: "WS01"}
	challenge, err := ChallengeMessage{
		Flags:           DefaultChallengeFlags,
		ServerChallenge: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		TargetName:      "CONTOSO",
		TargetInfo:      AvPairs{AvNbDomainName: toUnicode("CONTOSO")},
	}.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		username   string
		wantUser   string
		wantDomain string
	}{
		{`CONTOSO\alice`, "alice", "CONTOSO"},
		{"alice@contoso.com", "alice@contoso.com", ""},
		{"alice", "alice", ""},
	}
	for _, tc := range tests {
		t.Run(tc.username, func(t *testing.T) {
			creds := NewCredentials(tc.username, "secret")

			negotiate, err := codec.NegotiateToken(creds)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(negotiate), 32)
			assert.Equal(t, Signature[:], negotiate[:8])
			assert.Equal(t, byte(MessageNegotiate), negotiate[8])
			// The negotiate domain names the client machine, never the user's domain.
			assert.Zero(t, binary.LittleEndian.Uint16(negotiate[16:]), "negotiate domain length")

			authenticate, err := codec.AuthenticateToken(challenge, creds)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(authenticate), 64)
			assert.Equal(t, Signature[:], authenticate[:8])
			assert.Equal(t, byte(MessageAuthenticate), authenticate[8])

			domain, err := readVarField(authenticate, 28)
			require.NoError(t, err)
			user, err := readVarField(authenticate, 36)
			require.NoError(t, err)
			workstation, err := readVarField(authenticate, 44)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDomain, fromUnicode(domain))
			assert.Equal(t, tc.wantUser, fromUnicode(user))
			assert.Equal(t, "WS01", fromUnicode(workstation))
		})
	}
}

func TestNTLMCodec_ProtocolErrors(t *testing.T) {
	creds := NewCredentials("alice", "secret")

	lmKey, err := ChallengeMessage{
		Flags:      DefaultChallengeFlags | FlagNegotiateLMKey,
		TargetName: "CONTOSO",
	}.MarshalBinary()
	require.NoError(t, err)

	for name, challenge := range map[string][]byte{
		"garbage": []byte("not a challenge message"),
		"lm key":  lmKey,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NTLMCodec{}.AuthenticateToken(challenge, creds)
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}
