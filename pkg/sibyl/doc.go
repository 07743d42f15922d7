// Package sibyl provides the typed resource model and REST client for the
// Sibyl knowledge-graph backend. The server is the sole source of truth for
// every resource; this package holds the wire types, their validation rules,
// and the HTTP operations under /api/* that the synchronization layers
// (cache, mutations, realtime invalidation) are built on.
//
// All list operations are parameterized by filter/pagination/sort values;
// two requests with identical parameters address the same logical query and
// are cached under the same slot by the cache layer.
package sibyl
