// Package ocr defines the contract between the processing core and the
// recognition engines that do the actual text extraction.
//
// Key responsibilities:
//   - The Engine interface plus the Request/Result types exchanged with it.
//     Engines are external collaborators (tesseract, a PaddleOCR process);
//     the core treats them as opaque and slow.
//   - Content fingerprinting, which keys the result cache and collapses
//     duplicate submissions onto a single execution.
//   - Structured error markers plus the Wrap helper that classify engine
//     failures into retryable and fatal outcomes.
//
// Use these helpers when wiring a new engine adapter so failure handling and
// dedup behaviour stay uniform across providers.
package ocr
