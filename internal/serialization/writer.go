package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/born-ml/mrcqa/internal/tensor"
)

// WriterVersion is recorded in every header written by this package.
const WriterVersion = "0.3.0"

// Encode writes a v2 .born image to w.
//
// Tensors are laid out in name order within each section so that identical
// state produces identical bytes (apart from CreatedAt). A nil optimizer map
// writes no optimizer section.
func Encode(w io.Writer, header Header, model, optimizer map[string]*tensor.RawTensor) error {
	header.FormatVersion = FormatVersionV2
	header.WriterVersion = WriterVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	header.Tensors = make([]TensorMeta, 0, len(model)+len(optimizer))
	modelData := appendSection(nil, &header.Tensors, SectionModel, 0, model)
	optData := appendSection(nil, &header.Tensors, SectionOptimizer, int64(len(modelData)), optimizer)

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if optimizer != nil {
		flags |= FlagHasOptimizer
		if header.CheckpointMeta == nil {
			header.CheckpointMeta = &CheckpointMeta{IsCheckpoint: true}
		}
		header.CheckpointMeta.OptimizerChecksum = ChecksumHex(optData)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	checksum := ComputeChecksum(modelData)
	fixedHeader := make([]byte, FixedHeaderSizeV2)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersionV2))
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	// 0x0C-0x0F: Reserved (0)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(modelData)))
	copy(fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	currentPos := int64(FixedHeaderSizeV2) + int64(len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment

	for _, chunk := range [][]byte{fixedHeader, headerJSON, make([]byte, padding), modelData, optData} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}
	return nil
}

// appendSection appends the tensors of one section to buf and records their
// metadata with offsets starting at base.
func appendSection(buf []byte, metas *[]TensorMeta, section string, base int64, tensors map[string]*tensor.RawTensor) []byte {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		raw := tensors[name]
		data := raw.Bytes()
		*metas = append(*metas, TensorMeta{
			Name:    name,
			Section: section,
			DType:   dtypeToString(raw.DType()),
			Shape:   []int(raw.Shape().Clone()),
			Offset:  base + int64(len(buf)),
			Size:    int64(len(data)),
		})
		buf = append(buf, data...)
	}
	return buf
}

// WriteFile encodes a checkpoint and replaces path atomically: the image is
// written to a temporary file in the same directory, synced, then renamed.
// A crash at any point leaves either the old file or the new one.
func WriteFile(path string, header Header, model, optimizer map[string]*tensor.RawTensor) error {
	var buf bytes.Buffer
	if err := Encode(&buf, header, model, optimizer); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
