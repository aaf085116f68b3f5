// Package textutil provides small text helpers for display-name derivation
// and filename sanitization.
package textutil
