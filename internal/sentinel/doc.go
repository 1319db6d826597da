// Package sentinel provides a const-declarable error type for sentinel errors.
//
// Sentinel errors built with errors.New live in package-level vars that any
// importer could reassign. Error is a string-based error type instead, so
// sentinels can be declared as consts and stay immutable while remaining
// comparable through errors.Is across wrapped chains.
package sentinel
