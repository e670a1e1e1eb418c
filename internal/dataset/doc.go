// Package dataset loads question/passage/answer records, turns them into
// id sequences against word and character vocabularies, and groups the
// resulting examples into shuffled, padded batches.
//
// Records flow through three stages:
//
//	records, _ := dataset.Load("train.json")
//	examples, stats := dataset.Tokenize(records, tok, words, chars, dataset.Options{})
//	gen, _ := dataset.NewEpochGen(examples, 32, rng)
//	for i, batch := range gen.Batches() { ... }
package dataset
