// Package internal holds small cryptographic helpers shared by the engine
// that must not become part of the public API.
package internal
