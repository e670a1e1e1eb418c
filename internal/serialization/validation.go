package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds
// access within one section spanning [start, end) of the data area.
func ValidateTensorOffsets(tensors []TensorMeta, start, end int64) error {
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}

		if t.Offset < start || t.Offset+t.Size > end {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("region [%d-%d] outside section [%d-%d]", t.Offset, t.Offset+t.Size, start, end),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName checks tensor names for path traversal attacks and malicious patterns.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..' (path traversal attempt)",
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator (/ or \\)",
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
		}
	}
	return nil
}

// validateTensorMeta checks dtype and that the byte size agrees with the shape.
func validateTensorMeta(t TensorMeta) error {
	if t.DType != DTypeFloat32 {
		return &ValidationError{Type: "unsupported_dtype", Tensor: t.Name, Details: t.DType}
	}
	elems := int64(1)
	for _, d := range t.Shape {
		if d <= 0 {
			return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprintf("shape %v", t.Shape)}
		}
		elems *= int64(d)
	}
	if elems*4 != t.Size {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, elems*4, t.Size),
		}
	}
	return nil
}

// ValidateHeader performs comprehensive header validation.
//
// modelSize is the model section size from the fixed header; dataSize is
// the total number of data bytes present after the header.
func ValidateHeader(h *Header, modelSize, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}
	if modelSize > dataSize {
		return fmt.Errorf("%w: model section %d bytes, %d available", ErrTruncated, modelSize, dataSize)
	}

	seen := make(map[string]struct{}, len(h.Tensors))
	var model, opt []TensorMeta
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		key := t.Section + "\x00" + t.Name
		if _, dup := seen[key]; dup {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "section " + t.Section}
		}
		seen[key] = struct{}{}

		if err := validateTensorMeta(t); err != nil {
			return err
		}

		switch t.Section {
		case SectionModel:
			model = append(model, t)
		case SectionOptimizer:
			opt = append(opt, t)
		default:
			return &ValidationError{Type: "invalid_section", Tensor: t.Name, Details: t.Section}
		}
	}

	if err := ValidateTensorOffsets(model, 0, modelSize); err != nil {
		return err
	}
	// The optimizer section may be truncated or damaged without invalidating
	// the model; its bounds are checked when it is read.
	return nil
}
