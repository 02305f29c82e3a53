// Package conv converts between int and the fixed-width lengths carried in
// frame headers, failing instead of wrapping when a value does not fit.
package conv
