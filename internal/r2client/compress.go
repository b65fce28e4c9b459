package r2client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ContentType is the media type of compressed snapshots.
const ContentType = "application/zstd"

// CompressFile zstd-compresses srcPath into dstPath.
func CompressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("compress: open source: %w", err)
	}
	defer src.Close()

	return writeAtomic(dstPath, func(dst io.Writer) error {
		encoder, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("compress: create encoder: %w", err)
		}
		if _, err := io.Copy(encoder, src); err != nil {
			_ = encoder.Close()
			return fmt.Errorf("compress: copy: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("compress: close encoder: %w", err)
		}
		return nil
	})
}

// DecompressStream writes the zstd stream r to dstPath. dstPath is only
// replaced once the whole stream decoded.
func DecompressStream(r io.Reader, dstPath string) error {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer decoder.Close()

	return writeAtomic(dstPath, func(dst io.Writer) error {
		if _, err := io.Copy(dst, decoder); err != nil {
			return fmt.Errorf("decompress: copy: %w", err)
		}
		return nil
	})
}

func writeAtomic(dstPath string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dstPath), filepath.Base(dstPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dstPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
