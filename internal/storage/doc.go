// Package storage provides the persistence layer for the quote engine.
//
// It durably keeps:
//   - The scheduled job set (one daily job per window label)
//   - The delivery statistics aggregate and its bounded history
package storage
