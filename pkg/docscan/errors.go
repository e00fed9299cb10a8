package docscan

import "errors"

// ErrNoText is returned when OCR produces no usable text from the document image.
var ErrNoText = errors.New("no readable text detected")
