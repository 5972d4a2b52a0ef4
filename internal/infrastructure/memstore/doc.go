// Package memstore keeps OAuth states and social connections in process
// memory. It backs the "memory" state backend in development and the
// usecase tests; it is not shared between instances.
package memstore
