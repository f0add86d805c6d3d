// Package model defines the data types exchanged between the crawler,
// the normalizer, and the report writers: raw GeoJSON-style features as
// returned by the permit API, and the flat normalized permit rows that
// downstream research pipelines consume.
package model
