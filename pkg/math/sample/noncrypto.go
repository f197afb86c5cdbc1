package sample

import (
	"math/big"
	"math/rand"
)

// NonCryptoInterval samples from [lo, hi] using a seeded, non-cryptographic generator.
//
// 32-bit words are drawn until they cover the bit length of the range, and the result is reduced
// modulo the range size. The output is slightly biased; use Interval for anything secret.
func NonCryptoInterval(r *rand.Rand, lo, hi *big.Int) *big.Int {
	size := new(big.Int).Sub(hi, lo)
	size.Add(size, big.NewInt(1))
	if size.Sign() <= 0 {
		panic("sample.NonCryptoInterval: empty interval")
	}
	acc := new(big.Int)
	for bits := 0; bits < size.BitLen(); bits += 32 {
		acc.Lsh(acc, 32)
		acc.Or(acc, big.NewInt(int64(r.Uint32())))
	}
	acc.Mod(acc, size)
	return acc.Add(acc, lo)
}
