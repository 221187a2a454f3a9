// Package cli implements the mimic command-line interface.
//
// "mimic serve" runs the mock server in the foreground. The other commands
// are thin clients of a running server's admin API, located with
// --admin-url or MIMIC_ADMIN_URL.
package cli
