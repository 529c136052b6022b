package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "cartflow/snapshot/v1"
	DomainGraph    = "cartflow/graph/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content hash of a cart snapshot.
// It is stored on the order header so a committed order can be traced back
// to the exact field values it was built from.
func SnapshotHash(values IRObject) (string, error) {
	canonical, err := MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// GraphHash computes a stable identity for a field graph from its
// evaluation order and edges. Two graphs with the same declarations hash
// the same regardless of which process built them.
func GraphHash(order []string, edges map[string][]string) (string, error) {
	nodes := make(IRArray, len(order))
	for i, name := range order {
		deps := make(IRArray, len(edges[name]))
		for j, d := range edges[name] {
			deps[j] = IRString(d)
		}
		nodes[i] = IRObject{"name": IRString(name), "depends_on": deps}
	}

	canonical, err := MarshalCanonical(nodes)
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustSnapshotHash is like SnapshotHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSnapshotHash(values IRObject) string {
	h, err := SnapshotHash(values)
	if err != nil {
		panic(err)
	}
	return h
}
