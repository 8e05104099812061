//go:build !windows
// +build !windows

package nifti

import (
	"os"
	"syscall"
)

// voxMap keeps a .nii file mapped read-only so the header and voxel
// bytes can be decoded in place rather than through a read buffer.
type voxMap struct {
	data []byte
	file *os.File
}

// mapFile maps the whole of f. The file stays open for the lifetime of
// the mapping; an empty file yields an empty mapping.
func mapFile(f *os.File) (*voxMap, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &voxMap{file: f}, nil
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &voxMap{data: data, file: f}, nil
}

// Bytes returns the mapped file contents, valid only until Close.
func (m *voxMap) Bytes() []byte {
	return m.data
}

// Close unmaps the file and closes the underlying handle.
func (m *voxMap) Close() error {
	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
	}
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}
