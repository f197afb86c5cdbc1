package sample

import (
	"errors"
	"io"
	"math"
	"math/big"
	"sync"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/params"
	"github.com/taurusgroup/multi-party-vote/pkg/pool"
)

// primes generates an array containing all the odd prime numbers < below
func primes(below uint32) []uint32 {
	sieve := make([]bool, below)
	// Initially, all numbers starting from 2 are considered prime
	for i := 2; i < len(sieve); i++ {
		sieve[i] = true
	}
	// Now, we remove the multiples of every prime number we encounter
	for p := 2; p*p < len(sieve); p++ {
		if !sieve[p] {
			continue
		}
		for i := p << 1; i < len(sieve); i += p {
			sieve[i] = false
		}
	}
	// There are approximately N / log N primes below N
	nF := float64(below)
	out := make([]uint32, 0, int(nF/math.Log(nF)))
	for p := uint32(3); p < below; p++ {
		if sieve[p] {
			out = append(out, p)
		}
	}

	return out
}

// The number of numbers to check after our initial prime guess
const sieveSize = 1 << 18

// The upper bound on the prime numbers used for sieving
const primeBound = 1 << 20

var thePrimes []uint32
var initPrimes sync.Once

var sievePool = sync.Pool{
	New: func() interface{} {
		sieve := make([]bool, sieveSize)
		return &sieve
	},
}

// ErrPrimeSize is returned when asking for safe primes too small to sieve.
var ErrPrimeSize = errors.New("sample: safe prime must have at least 32 bits")

// trySafePrime looks for a safe prime of exactly bits bits in a window after a random base.
//
// It returns nil when the window holds none.
func trySafePrime(rand io.Reader, bits int) *saferith.Nat {
	initPrimes.Do(func() {
		thePrimes = primes(primeBound)
	})

	bytes := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(rand, bytes); err != nil {
		return nil
	}
	// Clear the bits above the requested size, and set the top two.
	top := bits % 8
	if top == 0 {
		top = 8
	}
	bytes[0] &= byte(1<<uint(top)) - 1
	if top >= 2 {
		bytes[0] |= 0b11 << uint(top-2)
	} else {
		bytes[0] |= 1
		bytes[1] |= 0x80
	}
	// For both p and (p - 1) / 2 to be prime, it must be the case that p = 3 mod 4
	bytes[len(bytes)-1] |= 3
	base := new(big.Int).SetBytes(bytes)

	sievePtr := sievePool.Get().(*[]bool)
	sieve := *sievePtr
	defer sievePool.Put(sievePtr)
	for i := 0; i < len(sieve); i++ {
		sieve[i] = true
	}
	// Remove candidates that aren't 3 mod 4
	for i := 1; i+2 < len(sieve); i += 4 {
		sieve[i] = false
		sieve[i+1] = false
		sieve[i+2] = false
	}
	remainder := new(big.Int)
	for _, prime := range thePrimes {
		// x = 0 mod r means x isn't prime, x = 1 mod r means (x - 1) / 2 isn't prime.
		remainder.SetUint64(uint64(prime))
		remainder.Mod(base, remainder)
		r := int(remainder.Uint64())
		primeInt := int(prime)
		if remainder.Cmp(base) == 0 {
			// base itself is one of the sieving primes
			continue
		}
		firstMultiple := primeInt - r
		if r == 0 {
			firstMultiple = 0
		}
		for i := firstMultiple; i < len(sieve); i += primeInt {
			sieve[i] = false
			if i+1 < len(sieve) {
				sieve[i+1] = false
			}
		}
	}
	p := new(big.Int)
	q := new(big.Int)
	for delta := 0; delta < len(sieve); delta++ {
		if !sieve[delta] {
			continue
		}

		p.SetUint64(uint64(delta))
		p.Add(p, base)
		if p.BitLen() > bits {
			return nil
		}
		// Since p is odd, this is equivalent to (p - 1) / 2
		q.Rsh(p, 1)
		if !q.ProbablyPrime(params.MillerRabinRounds) {
			continue
		}
		// A single round suffices for p once q is known to be prime.
		if !p.ProbablyPrime(0) {
			continue
		}
		return new(saferith.Nat).SetBig(p, bits)
	}

	return nil
}

// SafePrime returns a prime p of the given size such that (p - 1) / 2 is also prime.
//
// The search is spread over the workers of pl, which may be nil.
func SafePrime(rand io.Reader, bits int, pl *pool.Pool) (*saferith.Nat, error) {
	if bits < 32 {
		return nil, ErrPrimeSize
	}
	reader := pool.NewLockedReader(rand)
	results := pl.Search(1, func() interface{} {
		p := trySafePrime(reader, bits)
		// You have to do this, because of how Go handles nil.
		if p == nil {
			return nil
		}
		return p
	})
	return results[0].(*saferith.Nat), nil
}

// SubgroupGenerator returns a random generator of the order q subgroup of ℤₚˣ, for a safe prime p.
//
// Every square other than 1 generates that subgroup.
func SubgroupGenerator(rand io.Reader, p *saferith.Modulus) *saferith.Nat {
	one := new(saferith.Nat).SetUint64(1)
	for i := 0; i < maxIterations; i++ {
		h := ModN(rand, p)
		if h.EqZero() == 1 {
			continue
		}
		g := new(saferith.Nat).ModMul(h, h, p)
		if g.Eq(one) == 1 {
			continue
		}
		return g
	}
	panic(ErrMaxIterations)
}
