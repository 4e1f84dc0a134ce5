// Package service manages sync configurations.
//
// It is the entry point used by the CLI for everything except running a
// sync: create, update, delete and list syncs of a workbook, and the
// pre-flight folder compatibility check. Definitions are validated with
// compiler.Validate before anything is stored; invalid definitions fail
// with model.ErrBadConfiguration.
package service
