package source

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitsource/types"
)

// StreamSubjects lists the subjects that currently hold messages in a stream.
//
// Each distinct subject matching the filter becomes one split. Subjects without
// stored messages are not listed.
type StreamSubjects struct {
	js     jetstream.JetStream
	stream string
	filter string
}

var _ types.SplitSource = (*StreamSubjects)(nil)

// NewStreamSubjects creates a split source backed by stream info.
//
// Parameters:
//   - js: JetStream context
//   - stream: Stream name
//   - filter: Subject filter, wildcards allowed (empty means ">")
//
// Returns:
//   - *StreamSubjects: Split source
//
// Example:
//
//	js, _ := jetstream.New(nc)
//	src := source.NewStreamSubjects(js, "ORDERS", "orders.*")
func NewStreamSubjects(js jetstream.JetStream, stream, filter string) *StreamSubjects {
	if filter == "" {
		filter = ">"
	}

	return &StreamSubjects{js: js, stream: stream, filter: filter}
}

// ListSplits returns one split per stored subject, sorted by subject.
func (s *StreamSubjects) ListSplits(ctx context.Context) ([]types.Split, error) {
	if s.js == nil {
		return nil, errors.New("JetStream context is required")
	}

	stream, err := s.js.Stream(ctx, s.stream)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", s.stream, err)
	}

	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(s.filter))
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info for %s: %w", s.stream, err)
	}

	subjects := make([]string, 0, len(info.State.Subjects))
	for subj := range info.State.Subjects {
		subjects = append(subjects, subj)
	}
	slices.Sort(subjects)

	splits := make([]types.Split, len(subjects))
	for i, subj := range subjects {
		splits[i] = types.NewSubjectSplit(subj)
	}

	return splits, nil
}
