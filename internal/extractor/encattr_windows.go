//go:build windows

package extractor

import "golang.org/x/sys/windows"

// osEncrypted reports the NTFS FILE_ATTRIBUTE_ENCRYPTED flag
func osEncrypted(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_ENCRYPTED != 0
}
