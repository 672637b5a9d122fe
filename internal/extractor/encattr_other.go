//go:build !windows

package extractor

// osEncrypted is always false where the OS has no per-file encryption attribute
func osEncrypted(string) bool {
	return false
}
