// Package cryptox computes and verifies the password digests kept in a
// secret blob, and the legacy challenge-response protocols built on them
// (NTLMv1/v2, MS-CHAPv2, CRAM-MD5, APOP, DIGEST-MD5).
//
// The NT/LM/DES constructions are weak by modern standards. They exist for
// wire compatibility with clients that only speak those protocols.
package cryptox

import (
	"fmt"
	"strings"
)

// Algorithm is a single hash family. Each family owns one slot in a Blob.
type Algorithm uint8

// AlgorithmSet is a bitset of Algorithm values.
type AlgorithmSet uint8

const (
	AlgNT AlgorithmSet = 1 << iota
	AlgLM
	AlgSaltedSHA1
	AlgCRAMMD5
	AlgRecoverable

	// AlgNoBaseline suppresses the salted SHA1 slot Hash otherwise always
	// computes.
	AlgNoBaseline
)

// AllAlgorithms lists every family in slot order.
var AllAlgorithms = []AlgorithmSet{AlgNT, AlgLM, AlgSaltedSHA1, AlgCRAMMD5, AlgRecoverable}

var algorithmNames = map[AlgorithmSet]string{
	AlgNT:          "SMB-NT",
	AlgLM:          "SMB-LAN-MANAGER",
	AlgSaltedSHA1:  "SALTED-SHA1",
	AlgCRAMMD5:     "CRAM-MD5",
	AlgRecoverable: "RECOVERABLE",
}

// Has reports whether every bit of other is set.
func (s AlgorithmSet) Has(other AlgorithmSet) bool {
	return other != 0 && s&other == other
}

// withBaseline adds the salted SHA1 slot unless AlgNoBaseline is set.
func (s AlgorithmSet) withBaseline() AlgorithmSet {
	if s.Has(AlgNoBaseline) {
		return s
	}
	return s | AlgSaltedSHA1
}

// String renders the set in hash-list form, e.g. "SALTED-SHA1,SMB-NT".
func (s AlgorithmSet) String() string {
	names := make([]string, 0, len(AllAlgorithms))
	for _, a := range AllAlgorithms {
		if s.Has(a) {
			names = append(names, algorithmNames[a])
		}
	}
	return strings.Join(names, ",")
}

// ParseHashList parses a comma separated list of hash family names.
// Names are case-insensitive; blanks are ignored.
func ParseHashList(list string) (AlgorithmSet, error) {
	var set AlgorithmSet
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		found := false
		for alg, n := range algorithmNames {
			if n == name {
				set |= alg
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown hash family %q", raw)
		}
	}
	return set, nil
}
