package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const cacheExt = ".json.zst"

// cacheFile is the on-disk form of a built store.
type cacheFile struct {
	Model      string  `json:"model"`
	SourceHash string  `json:"source_hash"`
	Chunks     []Chunk `json:"chunks"`
}

func sourceHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func cachePath(dir, topic string) string {
	return filepath.Join(dir, topic+cacheExt)
}

// loadCache returns the cached store for topic when it was built from the
// same text with the same model. A stale or unreadable cache returns nil.
func loadCache(dir, topic, model, hash string) (*Store, error) {
	f, err := os.Open(cachePath(dir, topic))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd reader: %w", err)
	}
	defer dec.Close()

	var cf cacheFile
	if err := json.NewDecoder(dec).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if cf.Model != model || cf.SourceHash != hash {
		return nil, nil
	}
	return NewStore(cf.Model, cf.Chunks), nil
}

// saveCache writes the store atomically via a temp file and rename.
func saveCache(dir, topic, hash string, s *Store) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, topic+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}
	cf := cacheFile{Model: s.Model(), SourceHash: hash, Chunks: s.chunks}
	if err := json.NewEncoder(enc).Encode(&cf); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush zstd: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, cachePath(dir, topic))
}
