// Package shared содержит общие доменные типы, ошибки и события, которыми
// пользуются все доменные пакеты. Пакет не имеет внешних зависимостей.
package shared

import (
	"errors"
	"fmt"
)

// Базовые доменные ошибки для проверки через errors.Is().
var (
	// Ошибки сущностей
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Сигнал идемпотентности завершения. Для пользователя это не ошибка.
	ErrAlreadyCompleted = errors.New("already completed")

	// Ошибки валидации
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// Ошибки состояния
	ErrInvalidState = errors.New("invalid state")

	// Ошибки авторизации
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Ошибки конкурентного доступа
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Ошибки хранилища
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError - доменная ошибка с контекстом.
type DomainError struct {
	Domain  string // например "progress", "lesson", "identity"
	Op      string // Операция, например "Complete", "Get"
	Kind    error  // Базовый тип для errors.Is()
	Message string // Сообщение для человека
	Err     error  // Исходная ошибка (необязательна)
}

// Error реализует интерфейс error.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap возвращает исходную ошибку для errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is реализует сравнение для errors.Is().
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e == t || (e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message && e.Kind == t.Kind)
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError создаёт доменную ошибку.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError оборачивает ошибку доменным контекстом.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Wrap возвращает копию ошибки-эталона с причиной cause.
// errors.Is по-прежнему совпадает и с эталоном, и с его Kind.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Domain:  e.Domain,
		Op:      e.Op,
		Kind:    e.Kind,
		Message: e.Message,
		Err:     cause,
	}
}

// Ошибки прогресса
var (
	ErrUserNotFound      = NewDomainError("progress", "LoadUser", ErrNotFound, "user not found")
	ErrProfileExists     = NewDomainError("progress", "CreateProfile", ErrAlreadyExists, "profile already exists")
	ErrLessonCompleted   = NewDomainError("progress", "Complete", ErrAlreadyCompleted, "lesson already completed")
	ErrNegativeXP        = NewDomainError("progress", "Validate", ErrInvalidState, "total XP is negative")
	ErrNegativeStreak    = NewDomainError("progress", "Validate", ErrInvalidState, "streak is negative")
	ErrLevelInconsistent = NewDomainError("progress", "Validate", ErrInvalidState, "level does not match total XP")
	ErrStoreUnavailable  = NewDomainError("progress", "Store", ErrServiceUnavailable, "progress store unavailable")
	ErrCompletionRace    = NewDomainError("progress", "Complete", ErrServiceUnavailable, "user record changed during completion")
)

// Ошибки уроков
var (
	ErrLessonNotFound     = NewDomainError("lesson", "Get", ErrNotFound, "lesson not found")
	ErrLessonLocked       = NewDomainError("lesson", "Complete", ErrForbidden, "previous lessons must be completed first")
	ErrCatalogUnavailable = NewDomainError("lesson", "Store", ErrServiceUnavailable, "lesson catalog unavailable")
	ErrInvalidLesson      = NewDomainError("lesson", "Validate", ErrValidation, "invalid lesson")
)

// Ошибки идентификации
var (
	ErrAccountNotFound     = NewDomainError("identity", "GetAccount", ErrNotFound, "account not found")
	ErrInvalidCredentials  = NewDomainError("identity", "SignIn", ErrUnauthorized, "invalid email or password")
	ErrInvalidToken        = NewDomainError("identity", "Authenticate", ErrUnauthorized, "invalid or expired token")
	ErrEmailTaken          = NewDomainError("identity", "SignUp", ErrAlreadyExists, "email already registered")
	ErrWeakPassword        = NewDomainError("identity", "SignUp", ErrValidation, "password must be at least 6 characters")
	ErrInvalidEmail        = NewDomainError("identity", "SignUp", ErrValidation, "invalid email address")
	ErrAccountsUnavailable = NewDomainError("identity", "Store", ErrServiceUnavailable, "account store unavailable")
)

// IsNotFound проверяет ошибку "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists проверяет ошибку "уже существует".
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsAlreadyCompleted проверяет сигнал повторного завершения.
func IsAlreadyCompleted(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted)
}

// IsValidation проверяет ошибку валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsInvalidState проверяет, что сохранённые данные нарушают инвариант.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUnauthorized проверяет ошибку аутентификации.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden проверяет отказ в доступе или невыполненное предусловие.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnavailable проверяет временный сбой хранилища.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}

// IsRetryable проверяет, можно ли повторить операцию.
func IsRetryable(err error) bool {
	return IsUnavailable(err) || errors.Is(err, ErrConcurrentModification)
}
