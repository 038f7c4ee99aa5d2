// Package mapfile persists a submap collection to a flat stream and
// restores it.
//
// A map file is the 4-byte magic "MGRD", a little-endian uint32 manifest
// length, the JSON manifest, and a gzip stream of every block's packed words
// in manifest order, each word little-endian. Word endianness is fixed so
// files move across architectures.
package mapfile

import (
	"encoding/binary"
	"io"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/klauspost/compress/gzip"
	"github.com/midgardmaps/midgard/submap"
	"github.com/midgardmaps/midgard/voxel"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

// Error types surfaced when reading a map file.
const (
	ErrTypeManifestInvalid = "manifest_invalid"
	ErrTypeVariantMismatch = "variant_mismatch"
)

const (
	formatVersion   = 1
	maxManifestSize = 1 << 28

	// Manifest grid sizes above this are treated as corruption rather
	// than allocated.
	maxVoxelsPerSide = 256
)

var magic = [4]byte{'M', 'G', 'R', 'D'}

// Manifest describes the submaps stored in a map file.
type Manifest struct {
	Version int            `json:"version"`
	Variant string         `json:"variant"`
	Submaps []SubmapRecord `json:"submaps"`
}

type SubmapRecord struct {
	ID            uint32        `json:"id"`
	UUID          string        `json:"uuid"`
	VoxelSize     float64       `json:"voxel_size"`
	VoxelsPerSide int           `json:"voxels_per_side"`
	Blocks        []BlockRecord `json:"blocks"`
}

type BlockRecord struct {
	X         int `json:"x"`
	Y         int `json:"y"`
	Z         int `json:"z"`
	WordCount int `json:"word_count"`
}

// VariantName returns the stable name a map file records for the voxel
// variant it stores.
func VariantName[V voxel.Variant]() string {
	var v V
	switch any(&v).(type) {
	case *voxel.ClassUncertaintyVoxel:
		return "class_uncertainty"
	default:
		return "class"
	}
}

// Save writes the whole collection to w. Submap payloads are encoded
// concurrently; submaps are disjoint so this needs no extra locking.
func Save[V voxel.Variant](w io.Writer, collection *submap.Collection[V]) error {
	submaps := collection.Submaps()
	records := make([]SubmapRecord, len(submaps))
	payloads := make([][]uint32, len(submaps))

	var g errgroup.Group
	for i, s := range submaps {
		i, s := i, s
		g.Go(func() error {
			record := SubmapRecord{
				ID:            s.ID,
				UUID:          s.SubmapUUID,
				VoxelSize:     s.Config.VoxelSize,
				VoxelsPerSide: s.Config.VoxelsPerSide,
			}

			var words []uint32
			for _, idx := range s.BlockIndices() {
				b, _ := s.Block(idx)
				blockWords, err := b.Serialize()
				if err != nil {
					return errors.New("serializing submap failed").
						Wrap(err).
						WithTag("submap_id", s.ID).
						WithTag("block_index", idx)
				}
				record.Blocks = append(record.Blocks, BlockRecord{
					X:         idx.X,
					Y:         idx.Y,
					Z:         idx.Z,
					WordCount: len(blockWords),
				})
				words = append(words, blockWords...)
			}

			records[i] = record
			payloads[i] = words
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	manifest := Manifest{
		Version: formatVersion,
		Variant: VariantName[V](),
		Submaps: records,
	}
	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return errors.New("encoding map manifest failed").Wrap(err)
	}

	if _, err := w.Write(magic[:]); err != nil {
		return errors.New("writing map file magic failed").Wrap(err)
	}
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(manifestData)))
	if _, err := w.Write(length[:]); err != nil {
		return errors.New("writing map manifest length failed").Wrap(err)
	}
	if _, err := w.Write(manifestData); err != nil {
		return errors.New("writing map manifest failed").Wrap(err)
	}

	zw := gzip.NewWriter(w)
	for i, words := range payloads {
		if err := writeWords(zw, words); err != nil {
			return errors.New("writing submap words failed").
				Wrap(err).
				WithTag("submap_id", records[i].ID)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.New("closing map word stream failed").Wrap(err)
	}

	logs.WithTag("submap_count", len(submaps)).
		WithTag("variant", manifest.Variant).
		Debug("map file written")
	return nil
}

// ReadManifest consumes and validates the map file header from r, leaving r
// positioned at the compressed word stream.
func ReadManifest(r io.Reader) (Manifest, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Manifest{}, errors.New("reading map file header failed").
			WithType(ErrTypeManifestInvalid).
			Wrap(err)
	}
	if [4]byte(header[:4]) != magic {
		return Manifest{}, errors.New("not a midgard map file").
			WithType(ErrTypeManifestInvalid)
	}

	length := binary.LittleEndian.Uint32(header[4:])
	if length == 0 || length > maxManifestSize {
		return Manifest{}, errors.New("map manifest length out of range").
			WithType(ErrTypeManifestInvalid).
			WithTag("manifest_length", length)
	}

	manifestData := make([]byte, length)
	if _, err := io.ReadFull(r, manifestData); err != nil {
		return Manifest{}, errors.New("reading map manifest failed").
			WithType(ErrTypeManifestInvalid).
			Wrap(err)
	}

	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return Manifest{}, errors.New("decoding map manifest failed").
			WithType(ErrTypeManifestInvalid).
			Wrap(err)
	}
	if manifest.Version != formatVersion {
		return Manifest{}, errors.New("unsupported map file version").
			WithType(ErrTypeManifestInvalid).
			WithTag("version", manifest.Version)
	}
	return manifest, nil
}

// Load reads a map file from r and rebuilds the collection, restoring
// submap ids and uuids. Corruption in any block stops the load with a
// diagnostic naming the submap and block.
func Load[V voxel.Variant](r io.Reader) (*submap.Collection[V], error) {
	manifest, err := ReadManifest(r)
	if err != nil {
		return nil, err
	}
	if manifest.Variant != VariantName[V]() {
		return nil, errors.New("map file stores another voxel variant").
			WithType(ErrTypeVariantMismatch).
			WithTag("variant", manifest.Variant).
			WithTag("expected_variant", VariantName[V]())
	}

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.New("opening map word stream failed").Wrap(err)
	}
	defer zr.Close()

	collection := submap.NewCollection[V]()
	for _, record := range manifest.Submaps {
		if collection.SubmapIDExists(record.ID) {
			return nil, errors.New("duplicate submap id in manifest").
				WithType(ErrTypeManifestInvalid).
				WithTag("submap_id", record.ID)
		}

		if record.VoxelsPerSide < 0 || record.VoxelsPerSide > maxVoxelsPerSide {
			return nil, errors.New("submap grid size out of range").
				WithType(ErrTypeManifestInvalid).
				WithTag("submap_id", record.ID).
				WithTag("voxels_per_side", record.VoxelsPerSide).
				WithTag("max_voxels_per_side", maxVoxelsPerSide)
		}

		s := submap.NewSubmap[V](record.ID, submap.Config{
			VoxelSize:     record.VoxelSize,
			VoxelsPerSide: record.VoxelsPerSide,
		})
		if record.UUID != "" {
			s.SubmapUUID = record.UUID
		}

		// The largest stream a block of this grid can produce. Anything
		// bigger in the manifest is corruption, not data.
		vps := s.Config.VoxelsPerSide
		maxBlockWords := vps * vps * vps * voxel.MaxWordsPerVoxel

		for _, blockRecord := range record.Blocks {
			if blockRecord.WordCount < 0 || blockRecord.WordCount > maxBlockWords {
				return nil, errors.New("block word count out of range").
					WithType(ErrTypeManifestInvalid).
					WithTag("submap_id", record.ID).
					WithTag("block_index", blockIndex(blockRecord)).
					WithTag("word_count", blockRecord.WordCount).
					WithTag("max_word_count", maxBlockWords)
			}
			words, err := readWords(zr, blockRecord.WordCount)
			if err != nil {
				return nil, errors.New("reading block words failed").
					Wrap(err).
					WithType(voxel.ErrTypeStreamLengthMismatch).
					WithTag("submap_id", record.ID).
					WithTag("block_index", blockIndex(blockRecord))
			}
			b := s.AllocateBlock(blockIndex(blockRecord))
			if err := b.Deserialize(words); err != nil {
				return nil, errors.New("loading block failed").
					Wrap(err).
					WithTag("submap_id", record.ID).
					WithTag("block_index", blockIndex(blockRecord))
			}
		}
		collection.AddSubmap(s)
	}

	// The word stream must be exhausted together with the manifest.
	var trailing [1]byte
	if _, err := zr.Read(trailing[:]); err != io.EOF {
		return nil, errors.New("map word stream has trailing data").
			WithType(voxel.ErrTypeStreamLengthMismatch)
	}

	logs.WithTag("submap_count", collection.Count()).
		WithTag("variant", manifest.Variant).
		Debug("map file loaded")
	return collection, nil
}

func blockIndex(r BlockRecord) submap.BlockIndex {
	return submap.BlockIndex{X: r.X, Y: r.Y, Z: r.Z}
}

func writeWords(w io.Writer, words []uint32) error {
	buf := make([]byte, 4*len(words))
	for i, word := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], word)
	}
	_, err := w.Write(buf)
	return err
}

func readWords(r io.Reader, count int) ([]uint32, error) {
	buf := make([]byte, 4*count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return words, nil
}
