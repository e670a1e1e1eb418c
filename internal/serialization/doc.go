// Package serialization provides the .born container used for training checkpoints.
//
//	Format Structure (v2):
//	  [0x00-0x03: Magic "BORN"]
//	  [0x04-0x07: Version (uint32 LE)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header Size (uint64 LE)]
//	  [0x18-0x1F: Model Section Size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 of the model section]
//	  [Header: JSON metadata]
//	  [Padding to 64 bytes]
//	  [Model section: float32 LE tensors]
//	  [Optimizer section: float32 LE tensors]
//
// The optimizer section carries its own SHA-256 in the JSON header so that a
// damaged optimizer history can be reported separately from a damaged model.
//
// Example usage:
//
//	err := serialization.WriteFile(path, header, modelTensors, optimizerTensors)
//
//	reader, err := serialization.NewBornReader(path)
//	model, err := reader.ReadStateDict()
//	opt, err := reader.ReadOptimizerState()
package serialization
