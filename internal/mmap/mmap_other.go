//go:build !linux

package mmap

import (
	"os"

	"mm_heap/internal/errs"
)

func PageSize() int {
	return os.Getpagesize()
}

func Map(hint uintptr, size int) (uintptr, error) {
	return 0, errs.ErrNotSupported
}

func MapFixed(addr uintptr, size int) (uintptr, error) {
	return 0, errs.ErrNotSupported
}

func Unmap(addr uintptr, size int) error {
	return nil
}
