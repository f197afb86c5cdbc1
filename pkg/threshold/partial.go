package threshold

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-vote/pkg/zk"
	zkdleq "github.com/taurusgroup/multi-party-vote/pkg/zk/dleq"
)

// PartialDecryption is uᵢ = u^xᵢ from trustee Index, with a proof that log_u uᵢ = log_g hᵢ.
type PartialDecryption struct {
	Index int
	U     *saferith.Nat
	Proof *zkdleq.Proof
}

func shareHash(index int) *hash.Hash {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "PartialDecryption"}, index)
	return h
}

func (sk *PrivateKey) partialDecrypt(rand io.Reader, base *saferith.Nat) *PartialDecryption {
	G := sk.Group
	ui := G.Exp(base, sk.share)
	public := zkdleq.Public{
		G1: G.Generator(),
		H1: sk.H[sk.Index],
		G2: base,
		H2: ui,
	}
	return &PartialDecryption{
		Index: sk.Index,
		U:     ui,
		Proof: zkdleq.NewProof(rand, shareHash(sk.Index), G, public, zkdleq.Private{X: sk.share}),
	}
}

// Verify checks the share against the verification key of its trustee, for the given base.
func (d *PartialDecryption) Verify(pk *PublicKey, base *saferith.Nat) error {
	if d == nil || d.Index < 0 || d.Index >= pk.N() {
		return fmt.Errorf("%w: partial decryption from unknown trustee", zk.ErrProofInvalid)
	}
	G := pk.Group
	public := zkdleq.Public{
		G1: G.Generator(),
		H1: pk.H[d.Index],
		G2: base,
		H2: d.U,
	}
	if !d.Proof.Verify(shareHash(d.Index), G, public) {
		return fmt.Errorf("%w: partial decryption of trustee %d", zk.ErrProofInvalid, d.Index)
	}
	return nil
}

// combine interpolates base^x from the first K shares of distinct trustees, after verifying all of them.
func (pk *PublicKey) combine(base *saferith.Nat, shares []*PartialDecryption) (*saferith.Nat, error) {
	points := make([]int, 0, pk.K)
	byPoint := make(map[int]*PartialDecryption, pk.K)
	for _, d := range shares {
		if err := d.Verify(pk, base); err != nil {
			return nil, err
		}
		x := d.Index + 1
		if _, ok := byPoint[x]; ok || len(points) == pk.K {
			continue
		}
		byPoint[x] = d
		points = append(points, x)
	}
	if len(points) < pk.K {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrNotEnoughShares, len(points), pk.K)
	}

	coefficients, err := polynomial.Lagrange(pk.Group, points)
	if err != nil {
		return nil, err
	}
	G := pk.Group
	result := new(saferith.Nat).SetUint64(1)
	for _, x := range points {
		result = G.Mul(result, G.Exp(byPoint[x].U, coefficients[x]))
	}
	return result, nil
}

// DecryptShare returns γ^xᵢ with its proof, for an ElGamal ciphertext under pk.ElGamal().
func (sk *PrivateKey) DecryptShare(rand io.Reader, ct *elgamal.Ciphertext) (*PartialDecryption, error) {
	if err := ct.Validate(sk.Group); err != nil {
		return nil, err
	}
	if !sk.Group.InSubgroup(ct.Gamma) {
		return nil, ErrMalformedCiphertext
	}
	return sk.partialDecrypt(rand, ct.Gamma), nil
}

// CombineElGamal verifies the shares and returns δ⋅(γˣ)⁻¹.
func (pk *PublicKey) CombineElGamal(ct *elgamal.Ciphertext, shares []*PartialDecryption) (*saferith.Nat, error) {
	if err := ct.Validate(pk.Group); err != nil {
		return nil, err
	}
	gx, err := pk.combine(ct.Gamma, shares)
	if err != nil {
		return nil, err
	}
	return pk.Group.Div(ct.Delta, gx), nil
}
