package util

import "runtime"

// MaxShards bounds the number of store partitions.
const MaxShards = 256

// ShardCount resolves a requested shard count to the value the store uses.
// requested <= 0 selects nextPow2(2*GOMAXPROCS); any result is rounded up to
// a power of two and clamped to [1..MaxShards].
func ShardCount(requested int) int {
	n := requested
	if n <= 0 {
		p := runtime.GOMAXPROCS(0)
		if p < 1 {
			p = 1
		}
		n = 2 * p
	}
	n = int(NextPow2(uint64(n)))
	if n > MaxShards {
		n = MaxShards
	}
	return n
}

// PerShard splits a capacity hint across shards (ceil division).
// Negative hints are treated as zero.
func PerShard(capacity, shards int) int {
	if capacity <= 0 || shards <= 0 {
		return 0
	}
	return (capacity + shards - 1) / shards
}

// ShardIndex maps a 64-bit hash to a shard index.
// Uses a mask when shards is a power of two, modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
