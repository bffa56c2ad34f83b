// Package hash provides the checksum used by the snapshot envelope.
package hash
