// Package sqlerr classifies database driver errors into constraint
// categories so callers can react to a rejected write without knowing which
// driver produced it.
package sqlerr
