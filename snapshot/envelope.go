package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/codec"
	"github.com/hupe1980/kmeanslab/internal/hash"
)

// Version is the envelope format version written by Encode.
const Version = 1

var magic = [4]byte{'K', 'M', 'S', 'N'}

var (
	// ErrInvalidFormat is returned for data that is not a snapshot envelope.
	ErrInvalidFormat = errors.New("snapshot: invalid format")

	// ErrUnsupportedVersion is returned for envelopes of a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

	// ErrChecksum is returned when the payload does not match its checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
)

// Options control how snapshots are encoded.
type Options struct {
	// Codec serializes the snapshot. Default: codec.Default.
	Codec codec.Codec
	// Compression of the payload. Default: CompressionNone.
	Compression Compression
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	return o
}

// Encode serializes snap into an envelope.
func Encode(snap kmeanslab.Snapshot, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	name := opts.Codec.Name()
	if len(name) > math.MaxUint8 {
		return nil, fmt.Errorf("snapshot: codec name %q too long", name)
	}

	payload, err := opts.Codec.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("snapshot: payload of %d bytes too large", len(payload))
	}

	compressed, err := compress(payload, opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}

	body := payload
	if compressed != nil {
		body = compressed
	}

	buf := make([]byte, 0, 4+3+len(name)+12+len(body))
	buf = append(buf, magic[:]...)
	buf = append(buf, Version, byte(opts.Compression), byte(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(compressed)))
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(payload))
	buf = append(buf, body...)

	return buf, nil
}

// Header describes an envelope without decoding its payload.
type Header struct {
	Version     uint8
	Compression Compression
	Codec       string
	Size        uint32
	Stored      uint32
	Checksum    uint32
}

// ReadHeader parses the envelope header and returns the offset of the payload.
func ReadHeader(data []byte) (Header, int, error) {
	if len(data) < 7 || [4]byte(data[:4]) != magic {
		return Header{}, 0, ErrInvalidFormat
	}

	h := Header{
		Version:     data[4],
		Compression: Compression(data[5]),
	}
	if h.Version != Version {
		return Header{}, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	n := int(data[6])
	off := 7
	if len(data) < off+n+12 {
		return Header{}, 0, fmt.Errorf("%w: truncated header", ErrInvalidFormat)
	}

	h.Codec = string(data[off : off+n])
	off += n

	h.Size = binary.LittleEndian.Uint32(data[off:])
	h.Stored = binary.LittleEndian.Uint32(data[off+4:])
	h.Checksum = binary.LittleEndian.Uint32(data[off+8:])
	off += 12

	return h, off, nil
}

// Decode parses an envelope and returns the snapshot it holds.
// The codec recorded in the header is used, whatever codec.Default is.
func Decode(data []byte) (kmeanslab.Snapshot, error) {
	var snap kmeanslab.Snapshot

	h, off, err := ReadHeader(data)
	if err != nil {
		return snap, err
	}

	body := data[off:]

	c, err := codec.ByName(h.Codec)
	if err != nil {
		return snap, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	payload := body
	if h.Stored == 0 {
		if uint32(len(body)) != h.Size {
			return snap, fmt.Errorf("%w: payload is %d bytes, want %d", ErrInvalidFormat, len(body), h.Size)
		}
	} else {
		if uint32(len(body)) != h.Stored {
			return snap, fmt.Errorf("%w: payload is %d bytes, want %d", ErrInvalidFormat, len(body), h.Stored)
		}
		payload, err = decompress(body, h.Compression, h.Size)
		if err != nil {
			return snap, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
		}
	}

	if !hash.VerifyCRC32C(payload, h.Checksum) {
		return snap, ErrChecksum
	}

	if err := c.Unmarshal(payload, &snap); err != nil {
		return snap, fmt.Errorf("snapshot: unmarshal: %w", err)
	}

	return snap, nil
}
