package feed

import "errors"

// ErrFeedNotFound is returned when a feed ID does not exist.
var ErrFeedNotFound = errors.New("feed: not found")
