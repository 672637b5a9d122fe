package extractor

import (
	"bytes"
	"regexp"
	"strings"
)

// VendorSignature identifies a DRM container by its leading bytes
type VendorSignature struct {
	Prefix []byte
	Label  string
}

// DefaultVendorSignatures lists the DRM wrappers recognized out of the box
var DefaultVendorSignatures = []VendorSignature{
	{Prefix: []byte("SCDSA00"), Label: "SoftCamp Document Security"},
}

// An /Encrypt entry in the trailer points at an indirect object or an inline dictionary
var encryptDictPattern = regexp.MustCompile(`/Encrypt\s*(\d+\s+\d+\s+R|<<)`)

// ClassifyEncryption checks the OS encryption attribute, the PDF /Encrypt
// dictionary and vendor signatures. The label names every signal that
// matched and is only a diagnostic.
func ClassifyEncryption(path string, data []byte, signatures []VendorSignature) (bool, string) {
	var labels []string

	if osEncrypted(path) {
		labels = append(labels, "os file encryption attribute")
	}
	if encryptDictPattern.Match(data) {
		labels = append(labels, "pdf encrypt dictionary")
	}
	for _, sig := range signatures {
		if len(sig.Prefix) > 0 && bytes.HasPrefix(data, sig.Prefix) {
			labels = append(labels, sig.Label)
		}
	}

	return len(labels) > 0, strings.Join(labels, "; ")
}
