// Package app wires configuration, storage backends and the analytics
// service together for the nurture binaries.
package app
