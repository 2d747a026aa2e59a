// Package money converts between decimal currency strings and integer minor
// units. Rounding is half away from zero and happens once per source value.
package money
