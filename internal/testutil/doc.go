// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate: message fixtures, store wrappers that fail on demand
// and a logger that records entries. They are not intended for production
// usage.
package testutil
