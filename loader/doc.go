// Package loader provides ready-made cache.Loader implementations over common
// authoritative sources: a Redis key space and a SQL query.
//
// Both map "not found" at the source (redis.Nil, sql.ErrNoRows) to the
// Loader's "no value" result, and return every other failure as an error so
// the cache keeps what it already holds.
package loader

import logging "github.com/ipfs/go-log/v2"

var log = logging.Logger("refreshcache/loader")
