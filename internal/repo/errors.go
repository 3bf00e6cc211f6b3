package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSpec — описание проекта нельзя сохранить.
	ErrInvalidSpec = errors.New("invalid project spec")
)
