package report

import "errors"

// ErrNoData is returned when there are no permits to write. The writer
// refuses to produce an empty file: an empty CSV downstream is harder
// to diagnose than an explicit failure at crawl time.
var ErrNoData = errors.New("no permit data to write")
