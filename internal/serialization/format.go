package serialization

import (
	"time"

	"github.com/born-ml/mrcqa/internal/tensor"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Align tensor data to 64 bytes
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// DTypeFloat32 is the only dtype written by this package.
const DTypeFloat32 = "float32"

// Section names for TensorMeta.Section.
const (
	SectionModel     = "model"
	SectionOptimizer = "optimizer"
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	WriterVersion  string            `json:"writer_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint bool `json:"is_checkpoint"`

	// Epoch is the last completed epoch, or -1 when no epoch has completed.
	Epoch int     `json:"epoch"`
	Step  int64   `json:"step"`
	Loss  float64 `json:"loss"`

	// Vocabularies maps a vocabulary name ("words", "chars") to its tokens in id order.
	Vocabularies map[string][]string `json:"vocabularies,omitempty"`

	OptimizerType   string         `json:"optimizer_type,omitempty"`
	OptimizerConfig map[string]any `json:"optimizer_config,omitempty"`
	OptimizerStep   int            `json:"optimizer_step,omitempty"`

	// OptimizerChecksum is the hex SHA-256 of the optimizer section.
	OptimizerChecksum string `json:"optimizer_checksum,omitempty"`

	TrainingMeta map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	DType   string `json:"dtype"`
	Shape   []int  `json:"shape"`
	Offset  int64  `json:"offset"` // Bytes from the start of the tensor data
	Size    int64  `json:"size"`
}

func dtypeToString(dt tensor.DataType) string {
	if dt == tensor.Float32 {
		return DTypeFloat32
	}
	return "unknown"
}
