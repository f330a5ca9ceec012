// Package domain models glacier lake hazard reports and the rules the map
// dashboard applies to them.
//
// # Data Source
//
// Lake reports come from the lake data service (see adapter/lakeapi). Field
// officials upload a report per lake; each carries the lake's position,
// physical measurements, a model-assessed flood risk level and a confidence
// score. HIGH risk uploads enter a PENDING state until an authorized official
// verifies or rejects them.
//
// # Identifiers
//
// The data service is loose about id types: the same lake may be referenced
// by a JSON number in one payload, a numeric string in another and a float
// inside a rendered map feature. Every id is normalized to [LakeID] by
// [ParseLakeID] at the point it enters the process, so comparisons downstream
// are plain integer equality.
//
// # Risk levels
//
// Classifications are HIGH, MEDIUM and LOW. Parsing is case-insensitive.
// Unrecognized classifications are kept verbatim (upper-cased) rather than
// rejected; they still take part in filtering and render with
// [FallbackColor]:
//
//	HIGH   #ff3b30
//	MEDIUM #ff9500
//	LOW    #00c2ff
//	other  #999999
//
// # Filtering
//
// A lake is visible when its risk level is in the filter's risk set (compared
// case-insensitively) and its name contains the search query (also
// case-insensitive). An empty risk set hides everything; an empty query
// matches every name. An optional year range restricts lakes by observation
// year; lakes without an observation date are never excluded by it.
package domain
