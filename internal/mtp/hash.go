package mtp

// JenkinsOneAtATime is Bob Jenkins' one-at-a-time hash, used to pin a
// tenant flow to one of several eligible offered ports. No library in the
// dependency tree implements this exact variant (the closest available,
// twmb/murmur3, is a different algorithm with different avalanche
// properties), and flow-pinning requires bit-for-bit agreement with every
// other switch in the fabric, so it is reimplemented here rather than
// approximated by a substitute hash.
func JenkinsOneAtATime(key []byte) uint32 {
	var hash uint32
	for _, b := range key {
		hash += uint32(b)
		hash += hash << 10
		hash ^= hash >> 6
	}
	hash += hash << 3
	hash ^= hash >> 11
	hash += hash << 15
	return hash
}
