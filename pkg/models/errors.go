package models

import "errors"

var (
	// ErrForbidden вызывающий не является администратором
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound сущность не существует или находится не в ожидаемом статусе
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput некорректный ввод пользователя
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAssignment назначение без положительных количеств
	ErrInvalidAssignment = errors.New("invalid assignment")
	// ErrEmptyAssignment черновик назначения пуст
	ErrEmptyAssignment = errors.New("empty assignment")
	// ErrAlreadyExists запись уже существует
	ErrAlreadyExists = errors.New("already exists")
	// ErrStoreUnavailable ошибка хранилища
	ErrStoreUnavailable = errors.New("store unavailable")
)
