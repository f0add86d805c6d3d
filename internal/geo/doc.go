// Package geo provides geographic bounding boxes and grid partitioning.
// The grid is how the crawler works around the location endpoint's
// per-query result truncation: smaller cells return fewer markers each.
package geo
