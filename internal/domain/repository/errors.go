package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado o violación de constraint.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyUsed indica que un authorization code ya fue consumido o que
	// una refresh session ya fue rotada. Lo retornan MarkUsed y Rotate cuando
	// pierden la carrera.
	ErrAlreadyUsed = errors.New("already used")

	// ErrInvalidInput indica datos de entrada inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsAlreadyUsed verifica si el error es ErrAlreadyUsed.
func IsAlreadyUsed(err error) bool { return errors.Is(err, ErrAlreadyUsed) }
