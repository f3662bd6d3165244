package models

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
	ErrEmbedding  = errors.New("embedding error")
	ErrGeneration = errors.New("generation error")
)
