// Package connectors holds change sources that observe a vault.
//
// Each source implements driven.ChangeSource and reports vault-relative,
// POSIX-normalised paths. Ignore rules are applied downstream.
package connectors
