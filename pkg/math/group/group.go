// Package group implements the multiplicative group ℤₚˣ of a safe prime p = 2q + 1,
// together with its subgroup of quadratic residues of prime order q.
package group

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-vote/internal/params"
	"github.com/taurusgroup/multi-party-vote/pkg/math/sample"
)

// ErrGroupParameterInvalid is returned when p or q fails the primality audit,
// or when g does not have the required order.
var ErrGroupParameterInvalid = errors.New("group: invalid parameters")

// ErrNotInSubgroup is returned when decoding a value outside the order q subgroup.
var ErrNotInSubgroup = errors.New("group: element not in subgroup")

// rfc3526 is the 2048-bit MODP group prime from RFC 3526, section 3.
const rfc3526 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

// Group holds a safe prime p = 2q + 1 and a generator g.
//
// Group is immutable once created and safe to share between goroutines.
type Group struct {
	p, q, pMinus1 *saferith.Modulus
	g             *saferith.Nat
	// these are cached, since they are used in every exponentiation bound
	one, pm1, qm1 *saferith.Nat
}

// New creates a Group from p and g. The parameters are not audited, see Validate.
//
// p must be odd and at least 5.
func New(p, g *saferith.Nat) *Group {
	one := new(saferith.Nat).SetUint64(1)
	pm1 := new(saferith.Nat).Sub(p, one, p.AnnouncedLen())
	q := new(saferith.Nat).Rsh(pm1, 1, p.AnnouncedLen())
	qm1 := new(saferith.Nat).Sub(q, one, p.AnnouncedLen())
	return &Group{
		p:       saferith.ModulusFromNat(p),
		q:       saferith.ModulusFromNat(q),
		pMinus1: saferith.ModulusFromNat(pm1),
		g:       new(saferith.Nat).SetNat(g),
		one:     one,
		pm1:     pm1,
		qm1:     qm1,
	}
}

// FromUint64 is a convenience constructor for small groups.
func FromUint64(p, g uint64) *Group {
	return New(new(saferith.Nat).SetUint64(p), new(saferith.Nat).SetUint64(g))
}

// FromHex parses p and g from hexadecimal strings.
func FromHex(p, g string) (*Group, error) {
	pBig, ok := new(big.Int).SetString(p, 16)
	if !ok {
		return nil, fmt.Errorf("group: parse p: invalid hex %q", p)
	}
	gBig, ok := new(big.Int).SetString(g, 16)
	if !ok {
		return nil, fmt.Errorf("group: parse g: invalid hex %q", g)
	}
	if pBig.BitLen() < 3 || pBig.Bit(0) == 0 {
		return nil, fmt.Errorf("%w: p must be an odd prime ≥ 5", ErrGroupParameterInvalid)
	}
	if gBig.Sign() < 0 || gBig.Cmp(pBig) >= 0 {
		return nil, fmt.Errorf("%w: g must lie in [2, p-1]", ErrGroupParameterInvalid)
	}
	return New(new(saferith.Nat).SetBig(pBig, pBig.BitLen()), new(saferith.Nat).SetBig(gBig, pBig.BitLen())), nil
}

// Default returns the RFC 3526 2048-bit MODP group with generator 2.
//
// Since p = 7 mod 8, 2 is a quadratic residue, so g generates the order q subgroup.
func Default() *Group {
	g, err := FromHex(rfc3526, "02")
	if err != nil {
		panic(err)
	}
	return g
}

// P returns the modulus p.
func (G *Group) P() *saferith.Modulus { return G.p }

// Q returns the subgroup order q = (p - 1) / 2.
func (G *Group) Q() *saferith.Modulus { return G.q }

// PMinus1 returns p - 1, the modulus for exponents of arbitrary units.
func (G *Group) PMinus1() *saferith.Modulus { return G.pMinus1 }

// Generator returns a copy of g.
func (G *Group) Generator() *saferith.Nat { return new(saferith.Nat).SetNat(G.g) }

// Validate audits the parameters: p and q must pass Miller–Rabin and g must lie in [2, p-1].
func (G *Group) Validate() error {
	if !G.p.Big().ProbablyPrime(params.MillerRabinRounds) {
		return fmt.Errorf("%w: p is not prime", ErrGroupParameterInvalid)
	}
	if !G.q.Big().ProbablyPrime(params.MillerRabinRounds) {
		return fmt.Errorf("%w: q = (p-1)/2 is not prime", ErrGroupParameterInvalid)
	}
	if G.g.Eq(G.one) == 1 || !G.IsElement(G.g) {
		return fmt.Errorf("%w: g must lie in [2, p-1]", ErrGroupParameterInvalid)
	}
	return nil
}

// ValidateSubgroup performs Validate, and additionally checks that g has order q.
//
// The threshold layer interpolates exponents modulo q, which requires this.
func (G *Group) ValidateSubgroup() error {
	if err := G.Validate(); err != nil {
		return err
	}
	if !G.InSubgroup(G.g) {
		return fmt.Errorf("%w: g does not generate the order q subgroup", ErrGroupParameterInvalid)
	}
	return nil
}

// Equal returns true if both groups have the same p and g.
func (G *Group) Equal(other *Group) bool {
	if G == nil || other == nil {
		return G == other
	}
	return G.p.Nat().Eq(other.p.Nat()) == 1 && G.g.Eq(other.g) == 1
}

// BlockBits returns the largest number of bits b such that every b-bit value lies in [0, q).
func (G *Group) BlockBits() int {
	return G.q.BitLen() - 1
}

// IsElement returns true if 1 ≤ x ≤ p-1.
func (G *Group) IsElement(x *saferith.Nat) bool {
	if x == nil || x.EqZero() == 1 {
		return false
	}
	_, _, lt := x.CmpMod(G.p)
	return lt == 1
}

// InSubgroup returns true if x is an element with xᵠ = 1.
func (G *Group) InSubgroup(x *saferith.Nat) bool {
	if !G.IsElement(x) {
		return false
	}
	return new(saferith.Nat).Exp(x, G.q.Nat(), G.p).Eq(G.one) == 1
}

// RandomElement samples uniformly from [1, p-1].
func (G *Group) RandomElement(rand io.Reader) *saferith.Nat {
	return sample.Interval(rand, G.one, G.pm1)
}

// RandomExponent samples uniformly from [1, p-2].
func (G *Group) RandomExponent(rand io.Reader) *saferith.Nat {
	pm2 := new(saferith.Nat).Sub(G.pm1, G.one, G.pm1.AnnouncedLen())
	return sample.Interval(rand, G.one, pm2)
}

// RandomScalar samples uniformly from [1, q-1].
func (G *Group) RandomScalar(rand io.Reader) *saferith.Nat {
	return sample.Interval(rand, G.one, G.qm1)
}

// Domain implements hash.WriterToWithDomain.
func (G *Group) Domain() string { return "Group" }

// WriteTo implements io.WriterTo, writing the length prefixed bytes of p and g.
func (G *Group) WriteTo(w io.Writer) (int64, error) {
	total := int64(0)
	for _, b := range [][]byte{G.p.Big().Bytes(), G.g.Big().Bytes()} {
		n, err := w.Write([]byte{byte(len(b) >> 8), byte(len(b))})
		total += int64(n)
		if err != nil {
			return total, err
		}
		n, err = w.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type groupMarshal struct {
	P []byte
	G []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (G *Group) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(groupMarshal{P: G.p.Big().Bytes(), G: G.g.Big().Bytes()})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (G *Group) UnmarshalBinary(data []byte) error {
	var gm groupMarshal
	if err := cbor.Unmarshal(data, &gm); err != nil {
		return fmt.Errorf("group: unmarshal: %w", err)
	}
	if len(gm.P) == 0 || gm.P[len(gm.P)-1]&1 == 0 {
		return fmt.Errorf("%w: p must be odd", ErrGroupParameterInvalid)
	}
	*G = *New(new(saferith.Nat).SetBytes(gm.P), new(saferith.Nat).SetBytes(gm.G))
	return nil
}
