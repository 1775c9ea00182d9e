// Package serializer provides the versioned binary codecs for splits and
// enumerator checkpoints.
//
// All integers are big-endian. A split is written as [int32 length][UTF-8 subject];
// a checkpoint as [int32 count] followed by count splits. Data written by an
// unknown version is rejected with types.ErrVersionMismatch.
package serializer
