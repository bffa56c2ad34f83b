package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/blobstore"
	"github.com/hupe1980/kmeanslab/codec"
	"github.com/hupe1980/kmeanslab/testutil"
)

func sessionSnapshot(t *testing.T) kmeanslab.Snapshot {
	t.Helper()
	ctx := context.Background()

	s := kmeanslab.NewSession(kmeanslab.WithSeed(1))
	cfg := kmeanslab.Config{K: 3, Init: kmeanslab.InitKMeansPlusPlus, MaxIter: 50}
	require.NoError(t, s.Initialize(ctx, cfg, testutil.NewRNG(3).Blobs(300, 2, 3, 0.5), nil))

	_, err := s.Step(ctx)
	require.NoError(t, err)

	return s.Snapshot()
}

func TestEncodeDecode(t *testing.T) {
	snap := sessionSnapshot(t)

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
			t.Run(c.Name()+"/"+comp.String(), func(t *testing.T) {
				data, err := Encode(snap, Options{Codec: c, Compression: comp})
				require.NoError(t, err)

				h, _, err := ReadHeader(data)
				require.NoError(t, err)
				assert.Equal(t, uint8(Version), h.Version)
				assert.Equal(t, comp, h.Compression)
				assert.Equal(t, c.Name(), h.Codec)
				if comp != CompressionNone {
					assert.NotZero(t, h.Stored, "JSON of 300 points compresses well")
				}

				got, err := Decode(data)
				require.NoError(t, err)
				assert.Equal(t, snap, got)
			})
		}
	}
}

func TestEncode_UninitializedSession(t *testing.T) {
	snap := kmeanslab.NewSession(kmeanslab.WithSeed(1)).Snapshot()

	data, err := Encode(snap, Options{Compression: CompressionZSTD})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestDecode_Errors(t *testing.T) {
	data, err := Encode(sessionSnapshot(t), Options{Compression: CompressionLZ4})
	require.NoError(t, err)

	t.Run("Magic", func(t *testing.T) {
		_, err := Decode([]byte("NOPE...."))
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("Version", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[4] = 99
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decode(data[:len(data)-10])
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("Checksum", func(t *testing.T) {
		h, off, err := ReadHeader(data)
		require.NoError(t, err)

		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[off-4:], h.Checksum+1)
		_, err = Decode(bad)
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("UnknownCodec", func(t *testing.T) {
		bad := bytes.Clone(data)
		copy(bad[7:], "xx")
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	repo := NewRepository(store, Options{Compression: CompressionZSTD})

	snap := sessionSnapshot(t)

	require.NoError(t, repo.Save(ctx, "demo", snap))
	require.NoError(t, repo.Save(ctx, "demo-2", kmeanslab.Snapshot{Seed: 5}))
	require.NoError(t, store.Put(ctx, "snapshots/ignored.txt", []byte("x")))

	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "demo-2"}, names)

	got, err := repo.Load(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	restored, err := kmeanslab.Restore(got)
	require.NoError(t, err)
	assert.Equal(t, snap.Centroids, restored.Centroids())

	require.NoError(t, repo.Delete(ctx, "demo"))

	_, err = repo.Load(ctx, "demo")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, name := range []string{"", "../x", "a/b", ".hidden"} {
		assert.ErrorIs(t, repo.Save(ctx, name, snap), ErrInvalidName, name)
	}
}
