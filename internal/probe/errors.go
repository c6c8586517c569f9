package probe

import "errors"

var (
	ErrPublishFailed   = errors.New("failed to publish probe message")
	ErrFetchFailed     = errors.New("failed to fetch probe message")
	ErrEncodeFailed    = errors.New("failed to encode probe payload")
	ErrRecordFailed    = errors.New("failed to record probe sample")
	ErrReaderSetup     = errors.New("failed to position probe reader")
	ErrNoReachableNode = errors.New("no kafka broker reachable")
	ErrTopicCreate     = errors.New("failed to create topic")
	ErrTopicDelete     = errors.New("failed to delete topic")
)
