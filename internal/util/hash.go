package util

// Mix folds h into seed (boost::hash_combine with a 64-bit constant).
func Mix(seed, h uint64) uint64 {
	return seed ^ (h + 0x9e3779b97f4a7c15 + (seed << 6) + (seed >> 2))
}
