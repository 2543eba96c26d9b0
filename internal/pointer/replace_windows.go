//go:build windows

package pointer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Directory junctions (mount-point reparse points) are used instead of
// symbolic links: creating a symlink on Windows requires a privilege that
// service accounts frequently lack, while junctions do not.

const maxReparseDataSize = 16 * 1024

// mountPointHeader mirrors the fixed part of REPARSE_DATA_BUFFER for
// IO_REPARSE_TAG_MOUNT_POINT.
type mountPointHeader struct {
	reparseTag           uint32
	reparseDataLength    uint16
	reserved             uint16
	substituteNameOffset uint16
	substituteNameLength uint16
	printNameOffset      uint16
	printNameLength      uint16
}

// isPointer reports whether path is a mount-point reparse point.
func isPointer(path string) (bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, err
	}
	if attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT == 0 {
		return false, nil
	}
	_, err = readPointer(path)
	return err == nil, nil
}

func openReparseHandle(path string, access uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}
	return windows.CreateFile(p, access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT, 0)
}

// readPointer returns the junction's substitute path without the NT prefix.
func readPointer(path string) (string, error) {
	h, err := openReparseHandle(path, windows.GENERIC_READ)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	buf := make([]byte, maxReparseDataSize)
	var ret uint32
	if err := windows.DeviceIoControl(h, windows.FSCTL_GET_REPARSE_POINT,
		nil, 0, &buf[0], uint32(len(buf)), &ret, nil); err != nil {
		return "", err
	}
	hdr := (*mountPointHeader)(unsafe.Pointer(&buf[0]))
	if hdr.reparseTag != windows.IO_REPARSE_TAG_MOUNT_POINT {
		return "", fmt.Errorf("not a mount point (tag 0x%08x)", hdr.reparseTag)
	}
	data := buf[unsafe.Sizeof(mountPointHeader{}):]
	start := hdr.substituteNameOffset
	end := start + hdr.substituteNameLength
	sub := make([]uint16, 0, hdr.substituteNameLength/2)
	for i := start; i < end; i += 2 {
		sub = append(sub, uint16(data[i])|uint16(data[i+1])<<8)
	}
	target := string(utf16.Decode(sub))
	return strings.TrimPrefix(target, `\??\`), nil
}

// createJunction creates a directory at dir and turns it into a junction
// referencing the absolute target.
func createJunction(dir, target string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return err
	}
	h, err := openReparseHandle(dir, windows.GENERIC_WRITE)
	if err != nil {
		_ = os.Remove(dir)
		return err
	}
	defer windows.CloseHandle(h)

	sub := utf16.Encode([]rune(`\??\` + target))
	print := utf16.Encode([]rune(target))

	hdrSize := int(unsafe.Sizeof(mountPointHeader{}))
	// Path buffer: substitute + NUL, then print + NUL, all UTF-16.
	pathBytes := (len(sub) + 1 + len(print) + 1) * 2
	buf := make([]byte, hdrSize+pathBytes)

	hdr := (*mountPointHeader)(unsafe.Pointer(&buf[0]))
	hdr.reparseTag = windows.IO_REPARSE_TAG_MOUNT_POINT
	hdr.reparseDataLength = uint16(8 + pathBytes)
	hdr.substituteNameOffset = 0
	hdr.substituteNameLength = uint16(len(sub) * 2)
	hdr.printNameOffset = uint16((len(sub) + 1) * 2)
	hdr.printNameLength = uint16(len(print) * 2)

	out := buf[hdrSize:]
	off := 0
	for _, u := range sub {
		out[off] = byte(u)
		out[off+1] = byte(u >> 8)
		off += 2
	}
	off += 2 // NUL
	for _, u := range print {
		out[off] = byte(u)
		out[off+1] = byte(u >> 8)
		off += 2
	}

	var ret uint32
	if err := windows.DeviceIoControl(h, windows.FSCTL_SET_REPARSE_POINT,
		&buf[0], uint32(len(buf)), nil, 0, &ret, nil); err != nil {
		_ = os.Remove(dir)
		return err
	}
	return nil
}

// replacePointer atomically replaces the junction at path so it references
// target: create the new junction under a temporary name, then rename it
// over the old one.
func replacePointer(path, target string) error {
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())
	_ = os.Remove(tmp)
	if err := createJunction(tmp, target); err != nil {
		return err
	}

	tmpP, err := windows.UTF16PtrFromString(tmp)
	if err != nil {
		return err
	}
	dstP, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	if err := windows.MoveFileEx(tmpP, dstP, windows.MOVEFILE_REPLACE_EXISTING); err != nil {
		// MOVEFILE_REPLACE_EXISTING cannot replace directories; removing a
		// junction deletes only the reparse point, never its target's
		// contents, so this fallback is safe for a verified indirection.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			_ = os.Remove(tmp)
			return err
		}
		if err := windows.MoveFileEx(tmpP, dstP, 0); err != nil {
			_ = os.Remove(tmp)
			return err
		}
	}
	return nil
}
