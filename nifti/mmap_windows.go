//go:build windows
// +build windows

package nifti

import (
	"os"
	"syscall"
	"unsafe"
)

// voxMap keeps a .nii file mapped read-only so the header and voxel
// bytes can be decoded in place rather than through a read buffer.
type voxMap struct {
	data   []byte
	file   *os.File
	handle syscall.Handle
}

// mapFile maps the whole of f through a read-only file mapping. The
// file stays open for the lifetime of the mapping; an empty file
// yields an empty mapping.
func mapFile(f *os.File) (*voxMap, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &voxMap{file: f}, nil
	}

	sizeLow := uint32(size)
	sizeHigh := uint32(size >> 32)
	handle, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, syscall.PAGE_READONLY, sizeHigh, sizeLow, nil)
	if err != nil {
		return nil, err
	}
	ptr, err := syscall.MapViewOfFile(handle, syscall.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		syscall.CloseHandle(handle)
		return nil, err
	}
	data := (*[1 << 30]byte)(unsafe.Pointer(ptr))[:size:size]
	return &voxMap{data: data, file: f, handle: handle}, nil
}

// Bytes returns the mapped file contents, valid only until Close.
func (m *voxMap) Bytes() []byte {
	return m.data
}

// Close unmaps the view and closes the mapping and file handles.
func (m *voxMap) Close() error {
	if m.data != nil {
		syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(&m.data[0])))
		m.data = nil
	}
	if m.handle != 0 {
		syscall.CloseHandle(m.handle)
		m.handle = 0
	}
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}
