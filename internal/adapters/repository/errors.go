package repository

import (
	"errors"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = model.ErrNotFound
	ErrDuplicateKey  = errors.New("duplicate feature record")
	ErrInvalidRecord = errors.New("invalid feature record")
	ErrImageExists   = errors.New("image already registered")
	ErrStoreOpen     = errors.New("open feature store")
)
