//go:build linux

package mmap

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"mm_heap/internal/errs"
)

const (
	prot  = unix.PROT_READ | unix.PROT_WRITE
	flags = unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
)

// PageSize 返回系统页大小。
func PageSize() int {
	return unix.Getpagesize()
}

// Map 映射 size 字节的匿名可读写内存，hint 非 0 时作为放置提示，内核可以不采纳。
func Map(hint uintptr, size int) (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), uintptr(size), prot, flags)
	if err != nil {
		return 0, errors.Wrapf(err, "mmap %d bytes", size)
	}
	return uintptr(p), nil
}

// MapFixed 在 addr 处精确映射 size 字节；目标范围已被占用时返回 ErrPlacementDenied，不会覆盖已有映射。
func MapFixed(addr uintptr, size int) (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(addr), uintptr(size), prot, flags|unix.MAP_FIXED_NOREPLACE)
	if err != nil {
		err = errors.Wrapf(err, "mmap %d bytes at %#x", size, addr)
		if errors.Is(err, unix.EEXIST) {
			return 0, errors.Mark(err, errs.ErrPlacementDenied)
		}
		return 0, err
	}
	// 4.17 之前的内核不认识 MAP_FIXED_NOREPLACE，只把 addr 当提示
	if got := uintptr(p); got != addr {
		_ = unix.MunmapPtr(p, uintptr(size))
		return 0, errors.Wrapf(errs.ErrPlacementDenied, "mmap at %#x: kernel placed range at %#x", addr, got)
	}
	return addr, nil
}

// Unmap 解除 [addr, addr+size) 的映射。
func Unmap(addr uintptr, size int) error {
	if err := unix.MunmapPtr(unsafe.Pointer(addr), uintptr(size)); err != nil {
		return errors.Wrapf(err, "munmap %d bytes at %#x", size, addr)
	}
	return nil
}
