// Package logging provides types.Logger adapters for the splitsource library.
//
// Available adapters:
//   - NewNop: discards everything (the default when no logger is configured)
//   - NewSlog / NewSlogDefault: log/slog backed
//   - NewZap / NewZapSugared: go.uber.org/zap backed
package logging
