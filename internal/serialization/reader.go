package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/born-ml/mrcqa/internal/tensor"
)

// BornReader reads a .born image held in memory.
//
// Opening validates the fixed header, the JSON header and the model section
// checksum. The optimizer section is only checked by ReadOptimizerState.
type BornReader struct {
	header    Header
	flags     uint32
	data      []byte // everything after the header padding
	modelSize int64
}

// NewBornReader reads and validates the file at path.
func NewBornReader(path string) (*BornReader, error) {
	//nolint:gosec // G304: checkpoint path comes from the experiment folder
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return NewBornReaderFromBytes(b)
}

// NewBornReaderFromBytes parses and validates an in-memory image.
func NewBornReaderFromBytes(b []byte) (*BornReader, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	if string(b[:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if len(b) < FixedHeaderSizeV2 {
		return nil, fmt.Errorf("%w: fixed header needs %d bytes, have %d", ErrTruncated, FixedHeaderSizeV2, len(b))
	}

	version := binary.LittleEndian.Uint32(b[4:8])
	if version != FormatVersionV2 {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersionV2)
	}

	r := &BornReader{flags: binary.LittleEndian.Uint32(b[8:12])}

	headerSize := binary.LittleEndian.Uint64(b[16:24])
	modelSize := binary.LittleEndian.Uint64(b[24:32])
	var stored [32]byte
	copy(stored[:], b[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerEnd := int64(FixedHeaderSizeV2) + int64(headerSize)
	if headerEnd > int64(len(b)) {
		return nil, fmt.Errorf("%w: header runs past end of file", ErrTruncated)
	}
	if err := json.Unmarshal(b[FixedHeaderSizeV2:headerEnd], &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	padding := (HeaderAlignment - (headerEnd % HeaderAlignment)) % HeaderAlignment
	dataOffset := min(headerEnd+padding, int64(len(b)))
	r.data = b[dataOffset:]

	if modelSize > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: model section %d bytes, %d available", ErrTruncated, modelSize, len(r.data))
	}
	r.modelSize = int64(modelSize)

	if err := ValidateHeader(&r.header, r.modelSize, int64(len(r.data))); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(r.data[:r.modelSize]), stored); err != nil {
		return nil, fmt.Errorf("model section: %w", err)
	}

	return r, nil
}

// Header returns the file header.
func (r *BornReader) Header() Header {
	return r.header
}

// HasOptimizer reports whether the writer stored an optimizer section.
func (r *BornReader) HasOptimizer() bool {
	return r.flags&FlagHasOptimizer != 0
}

// TensorNames returns the names of all tensors in a section, in file order.
func (r *BornReader) TensorNames(section string) []string {
	var names []string
	for _, meta := range r.header.Tensors {
		if meta.Section == section {
			names = append(names, meta.Name)
		}
	}
	return names
}

// ReadStateDict decodes every model-section tensor.
func (r *BornReader) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	return r.readSection(SectionModel)
}

// ReadOptimizerState verifies and decodes the optimizer section.
//
// Returns ErrNoOptimizerState when none was written, and ErrChecksumMismatch
// or a *ValidationError when the section is damaged.
func (r *BornReader) ReadOptimizerState() (map[string]*tensor.RawTensor, error) {
	if !r.HasOptimizer() {
		return nil, ErrNoOptimizerState
	}
	meta := r.header.CheckpointMeta
	if meta == nil || meta.OptimizerChecksum == "" {
		return nil, &ValidationError{Type: "missing_checksum", Details: "optimizer section has no checksum"}
	}

	var optTensors []TensorMeta
	for _, t := range r.header.Tensors {
		if t.Section == SectionOptimizer {
			optTensors = append(optTensors, t)
		}
	}
	if err := ValidateTensorOffsets(optTensors, r.modelSize, int64(len(r.data))); err != nil {
		return nil, err
	}

	sectionEnd := r.modelSize
	for _, t := range optTensors {
		sectionEnd = max(sectionEnd, t.Offset+t.Size)
	}
	if ChecksumHex(r.data[r.modelSize:sectionEnd]) != meta.OptimizerChecksum {
		return nil, fmt.Errorf("optimizer section: %w", ErrChecksumMismatch)
	}

	return r.readSection(SectionOptimizer)
}

func (r *BornReader) readSection(section string) (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor)
	for _, meta := range r.header.Tensors {
		if meta.Section != section {
			continue
		}
		raw, err := tensor.NewRaw(tensor.Shape(slices.Clone(meta.Shape)), tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		if err := raw.SetBytes(r.data[meta.Offset : meta.Offset+meta.Size]); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		out[meta.Name] = raw
	}
	return out, nil
}
