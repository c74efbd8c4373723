// Package scanner owns the background sensitivity pass: enumerating eligible
// assets, classifying them, and writing verdicts through to the ledger so the
// pass survives interruption and never repeats work.
package scanner
