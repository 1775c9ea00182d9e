// Package enumerator tracks the split set of a source and assigns it to readers.
//
// Assignment is static: splits are fixed subject addresses handed out once when
// the enumerator starts (or is restored from a checkpoint snapshot). In bounded
// mode a split leaves the snapshot once its reader reports it finished.
package enumerator
