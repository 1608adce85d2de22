package repository

import "errors"

var (
	// ErrNotFound lo devuelven todos los repositorios cuando la fila no existe.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)
