package ntlmtest

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/binary"
	"hash"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/md4"
)

// authenticateMessage holds the fields of an AUTHENTICATE_MESSAGE the
// server needs to check the NTLMv2 proof.
type authenticateMessage struct {
	ntResponse []byte
	domain     string
	user       string
}

func parseAuthenticate(msg []byte) (authenticateMessage, bool) {
	if len(msg) < 64 {
		return authenticateMessage{}, false
	}
	field := func(pos int) []byte {
		l := int(binary.LittleEndian.Uint16(msg[pos:]))
		off := int(binary.LittleEndian.Uint32(msg[pos+4:]))
		if off+l > len(msg) {
			return nil
		}
		return msg[off : off+l]
	}
	return authenticateMessage{
		ntResponse: field(20),
		domain:     fromUnicode(field(28)),
		user:       fromUnicode(field(36)),
	}, true
}

// verify checks the NTProofStr of an NTLMv2 response ([MS-NLMP] 3.3.2).
// A domain sent by the client must match the configured one and is the
// only one mixed into NTOWFv2. Without one, the configured domain and the
// empty domain are tried.
func (s *Server) verify(am authenticateMessage, serverChallenge [8]byte) bool {
	if len(am.ntResponse) <= 16 {
		return false
	}
	if !strings.EqualFold(am.user, s.cfg.Username) {
		return false
	}
	domains := []string{s.cfg.Domain, ""}
	if am.domain != "" {
		if !strings.EqualFold(am.domain, s.cfg.Domain) {
			return false
		}
		domains = []string{am.domain}
	}
	proof, blob := am.ntResponse[:16], am.ntResponse[16:]
	for _, domain := range domains {
		key := ntowfv2(s.cfg.Password, am.user, domain)
		if hmac.Equal(proof, hmacMD5(key, serverChallenge[:], blob)) {
			return true
		}
	}
	return false
}

// NTLMv2 client blob header: RespType, HiRespType, Reserved1 (6),
// TimeStamp (8), ChallengeFromClient (8), Reserved3 (4).
const blobHeaderLen = 28

const avChannelBindings = 0x000A

// channelBindings returns the MsvAvChannelBindings value of an NTLMv2
// response, or nil.
func channelBindings(ntResponse []byte) []byte {
	if len(ntResponse) < 16+blobHeaderLen {
		return nil
	}
	pairs := ntResponse[16+blobHeaderLen:]
	for len(pairs) >= 4 {
		id := binary.LittleEndian.Uint16(pairs)
		l := int(binary.LittleEndian.Uint16(pairs[2:]))
		if id == 0 || len(pairs) < 4+l {
			return nil
		}
		if id == avChannelBindings {
			return append([]byte(nil), pairs[4:4+l]...)
		}
		pairs = pairs[4+l:]
	}
	return nil
}

// ChannelBindingHash returns the MD5 of the gss_channel_bindings_struct
// carrying the tls-server-end-point binding of cert (RFC 5929), as found in
// MsvAvChannelBindings.
func ChannelBindingHash(cert *x509.Certificate) []byte {
	var h hash.Hash
	switch cert.SignatureAlgorithm {
	case x509.SHA384WithRSA, x509.ECDSAWithSHA384, x509.SHA384WithRSAPSS:
		h = sha512.New384()
	case x509.SHA512WithRSA, x509.ECDSAWithSHA512, x509.SHA512WithRSAPSS:
		h = sha512.New()
	default:
		h = sha256.New()
	}
	h.Write(cert.Raw)
	appData := append([]byte("tls-server-end-point:"), h.Sum(nil)...)

	// Initiator and acceptor address type and length are all zero.
	buf := make([]byte, 20, 20+len(appData))
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(appData)))
	buf = append(buf, appData...)
	sum := md5.Sum(buf)
	return sum[:]
}

func (s *Server) bindingMatches(got []byte) bool {
	if s.Certificate() == nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, ChannelBindingHash(s.Certificate()))
}

func ntowfv2(password, user, domain string) []byte {
	h := md4.New()
	h.Write(toUnicode(password))
	return hmacMD5(h.Sum(nil), toUnicode(strings.ToUpper(user)+domain))
}

func hmacMD5(key []byte, data ...[]byte) []byte {
	mac := hmac.New(md5.New, key)
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil)
}

func toUnicode(s string) []byte {
	var buf bytes.Buffer
	for _, u := range utf16.Encode([]rune(s)) {
		_ = binary.Write(&buf, binary.LittleEndian, u)
	}
	return buf.Bytes()
}

func fromUnicode(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}
