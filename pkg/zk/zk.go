// Package zk holds what the non-interactive proofs of this module have in common.
package zk

import "errors"

// ErrProofInvalid is returned, possibly wrapped, whenever a proof fails to verify.
var ErrProofInvalid = errors.New("zk: proof invalid")
