// Package fixed 在堆 payload 上直接放置无指针的 Go 值。
// 映射内存对 GC 不可见，所以 T 里不能有任何指针类字段。
package fixed

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"

	"mm_heap/internal/block"
	"mm_heap/internal/consts"
	"mm_heap/internal/errs"
)

// Allocator New/NewSlice/Delete 使用的堆接口。
type Allocator interface {
	Alloc(size int) (uintptr, error)
	Free(addr uintptr)
}

// checkType T 必须能按 payload 的对齐放置，且不含指针。
func checkType[T any]() error {
	t := reflect.TypeFor[T]()
	if t.Align() > consts.Align {
		return errors.Wrapf(errs.ErrBadArgument, "type %s needs %d-byte alignment, payload gives %d",
			t.String(), t.Align(), consts.Align)
	}
	if uint64(t.Size()) > consts.MaxRequest {
		return errors.Wrapf(errs.ErrBadArgument, "type %s is %d bytes", t.String(), t.Size())
	}
	return typeNoPointers(t)
}

func typeNoPointers(t reflect.Type) error {
	// 零长度数组不占空间，元素类型无所谓
	if t.Kind() == reflect.Array && t.Len() == 0 {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return typeNoPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := typeNoPointers(t.Field(i).Type); err != nil {
				return errors.Wrapf(err, "field %s", t.Field(i).Name)
			}
		}
		return nil
	case reflect.String, reflect.Slice, reflect.Map, reflect.Pointer,
		reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return errors.Wrapf(errs.ErrBadArgument, "type %s contains pointer-like data", t.String())
	default:
		return errors.Wrapf(errs.ErrBadArgument, "unsupported kind %s (%s)", t.Kind(), t.String())
	}
}

func allocZeroed(a Allocator, size int) (uintptr, error) {
	size = max(size, 1)
	p, err := a.Alloc(size)
	if err != nil {
		return 0, err
	}
	clear(block.View(p, size))
	return p, nil
}

// New 在堆上分配一个清零的 T。
func New[T any](a Allocator) (*T, error) {
	if err := checkType[T](); err != nil {
		return nil, err
	}
	p, err := allocZeroed(a, int(unsafe.Sizeof(*new(T))))
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(p)), nil
}

// NewSlice 在堆上分配 n 个清零的 T，n 必须大于 0。
func NewSlice[T any](a Allocator, n int) ([]T, error) {
	if err := checkType[T](); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errors.Wrapf(errs.ErrBadArgument, "slice of %d elements", n)
	}
	elem := int(unsafe.Sizeof(*new(T)))
	if elem > 0 && n > int(^uint(0)>>1)/elem {
		return nil, errors.Wrapf(errs.ErrBadArgument, "slice of %d elements of %d bytes", n, elem)
	}
	p, err := allocZeroed(a, n*elem)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(p)), n), nil
}

// Delete 释放 New 返回的指针；nil 什么也不做。
func Delete[T any](a Allocator, v *T) {
	if v == nil {
		return
	}
	a.Free(uintptr(unsafe.Pointer(v)))
}

// DeleteSlice 释放 NewSlice 返回的切片。
func DeleteSlice[T any](a Allocator, s []T) {
	if len(s) == 0 {
		return
	}
	a.Free(uintptr(unsafe.Pointer(unsafe.SliceData(s))))
}
