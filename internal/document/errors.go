package document

import "errors"

var (
	// ErrLayerNotFound слой не принадлежит изображению
	ErrLayerNotFound = errors.New("document: layer not found in image")
)
