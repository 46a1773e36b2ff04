package mm_heap

import "mm_heap/internal/fixed"

// New 在堆上分配一个清零的 T，T 不能含指针类字段。
func New[T any](hp *Heap) (*T, error) {
	return fixed.New[T](hp.h)
}

// NewSlice 在堆上分配 n 个清零的 T。
func NewSlice[T any](hp *Heap, n int) ([]T, error) {
	return fixed.NewSlice[T](hp.h, n)
}

// Delete 释放 New 返回的指针。
func Delete[T any](hp *Heap, v *T) {
	fixed.Delete(hp.h, v)
}

func DeleteSlice[T any](hp *Heap, s []T) {
	fixed.DeleteSlice(hp.h, s)
}
