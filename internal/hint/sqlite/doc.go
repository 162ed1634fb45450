// Package sqlite implements the primary wallet-hint backend over SQLite.
package sqlite
