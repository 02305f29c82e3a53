// Package cli is responsible for parsing command-line arguments, loading the
// run file and handling process-level concerns like exit codes. It translates
// both into search options and runs either the whole node tree or a single
// node of it.
package cli
