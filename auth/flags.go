package auth

// NegotiateFlags is the NTLM NEGOTIATE_FLAGS bit field ([MS-NLMP] 2.2.2.5).
type NegotiateFlags uint32

// Flags referenced by this package. Letters follow the [MS-NLMP] table.
const (
	/*A*/ FlagNegotiateUnicode NegotiateFlags = 1 << 0
	/*B*/ FlagNegotiateOEM NegotiateFlags = 1 << 1
	/*C*/ FlagRequestTarget NegotiateFlags = 1 << 2
	/*G*/ FlagNegotiateLMKey NegotiateFlags = 1 << 7
	/*H*/ FlagNegotiateNTLM NegotiateFlags = 1 << 9
	/*M*/ FlagNegotiateAlwaysSign NegotiateFlags = 1 << 15
	/*N*/ FlagTargetTypeDomain NegotiateFlags = 1 << 16
	/*P*/ FlagNegotiateExtendedSessionSecurity NegotiateFlags = 1 << 19
	/*S*/ FlagNegotiateTargetInfo NegotiateFlags = 1 << 23
	/*T*/ FlagNegotiateVersion NegotiateFlags = 1 << 25
	/*U*/ FlagNegotiate128 NegotiateFlags = 1 << 29
	/*V*/ FlagNegotiateKeyExch NegotiateFlags = 1 << 30
	/*W*/ FlagNegotiate56 NegotiateFlags = 1 << 31
)

// DefaultChallengeFlags are the flags a typical server answers with.
const DefaultChallengeFlags = FlagNegotiateUnicode |
	FlagRequestTarget |
	FlagNegotiateNTLM |
	FlagNegotiateAlwaysSign |
	FlagTargetTypeDomain |
	FlagNegotiateExtendedSessionSecurity |
	FlagNegotiateTargetInfo |
	FlagNegotiate128 |
	FlagNegotiate56

// Has reports whether all bits of flags are set.
func (f NegotiateFlags) Has(flags NegotiateFlags) bool {
	return f&flags == flags
}
