// Package hashfn provides the reference cmn.Hash implementation: SHA3-512
// over golang.org/x/crypto, matching the 64-byte width Id requires.
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package hashfn

import (
	"golang.org/x/crypto/sha3"

	"github.com/maidsafe-go/vaultcore/ids"
)

// SHA3_512 implements cmn.Hash.
type SHA3_512 struct{}

func (SHA3_512) Sum512(data []byte) ids.Id {
	return ids.Id(sha3.Sum512(data))
}
