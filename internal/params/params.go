package params

const (
	SecParam = 256
	SecBytes = SecParam / 8

	// DigestBytes is the size of every transcript digest, commitment and challenge.
	DigestBytes = 2 * SecBytes // = 64
	DigestBits  = 8 * DigestBytes

	// MillerRabinRounds is used when auditing group parameters.
	//
	// 20 is the same number that Go uses internally.
	MillerRabinRounds = 20

	// StringLengthBits is the width of the length prefix in the bit stream string codec.
	StringLengthBits = 32
	// CharBits is the width of a single character in the bit stream string codec.
	CharBits = 7

	// DefaultGroupBits is the size of the RFC 3526 group used when no parameters are configured.
	DefaultGroupBits = 2048
)
