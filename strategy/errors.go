package strategy

import "github.com/arloliu/splitsource/types"

// ErrNoReaders indicates that no readers were provided for assignment.
var ErrNoReaders = types.ErrNoReadersAvailable
