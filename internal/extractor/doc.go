// Package extractor recovers plain text from supported document formats.
//
// Formats are dispatched by extension through a Registry:
//
//	reg := extractor.NewDefaultRegistry(extractor.Options{Logger: logger})
//	res, err := reg.Extract(ctx, "/docs/report.pdf")
//	if err != nil {
//	    return err // unreadable or malformed, the file is recorded as failed
//	}
//	fmt.Println(res.Status, res.Method, len(res.Text))
//
// # PDF Chain
//
// PDFs run through ordered stages and stop at the first one that yields at
// least MinTextLength characters:
//
//  1. native text layer (ledongthuc/pdf)
//  2. local OCR, page by page (pdftoppm + tesseract by default)
//  3. cloud extraction through an llm.Generator, inline below InlineLimit
//     and via file upload above it
//  4. an optional Decrypter helper
//
// When nothing qualifies the file is classified. Encryption signals (OS
// attribute, /Encrypt dictionary, vendor signatures) give StatusEncrypted,
// otherwise the result is StatusEmpty. Neither is an error.
//
// A failed OCR page is skipped and turns the result into StatusPartial with
// the failed pages listed in Diagnostic.
package extractor
