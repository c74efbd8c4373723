// Package testsupport provides shared helpers for tests: per-test configs
// with temp directories, ledger opening with cleanup, and a deterministic
// in-memory asset source fake.
package testsupport
