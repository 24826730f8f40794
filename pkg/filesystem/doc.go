// Package filesystem provides filesystem implementations for solodeploy.
//
// The FS interface is implemented by the real OS filesystem and by an
// afero-backed filesystem used for in-memory tests.
package filesystem
