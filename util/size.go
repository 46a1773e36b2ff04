package util

// AlignUp 把 n 向上取整到 align 的整数倍，align 必须是 2 的幂。
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// IsAligned 判断 n 是否是 align 的整数倍。
func IsAligned(n, align uint64) bool {
	return n&(align-1) == 0
}
