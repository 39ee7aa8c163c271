// Package chain defines the vote chain's data types and the two pure
// primitives the ledger is built on: the block digest and the proof-of-work
// predicate.
//
// A block's digest is the SHA-256 of its canonical JSON form (sorted keys,
// Python-compatible separators and number formatting), so files written by
// earlier deployments of the ledger keep validating byte for byte.
//
// Proof-of-work chains each block's proof to its predecessor's: a proof p is
// valid after q when sha256(decimal(p² − q²)) starts with Difficulty '0'
// hex characters.
package chain
