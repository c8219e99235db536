package invoice

import (
	"errors"
	"fmt"
)

// ErrInvalidStay является базовой ошибка некорректного описания проживания.
var ErrInvalidStay = errors.New("invalid stay")

// InvalidStayError описывает некорректные поля проживания.
type InvalidStayError struct {
	fields map[string]string
}

func newInvalidStayError() *InvalidStayError {
	return &InvalidStayError{fields: make(map[string]string)}
}

func (e *InvalidStayError) add(field, msg string) {
	e.fields[field] = msg
}

func (e *InvalidStayError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidStay, e.fields)
}

// Is позволяет сравнивать ошибку с ErrInvalidStay через errors.Is.
func (e *InvalidStayError) Is(target error) bool {
	return target == ErrInvalidStay
}

// Fields возвращает сообщения по полям.
func (e *InvalidStayError) Fields() map[string]string {
	return e.fields
}

// AsInvalidStay возвращает InvalidStayError из цепочки ошибок или nil.
func AsInvalidStay(err error) *InvalidStayError {
	var e *InvalidStayError
	if errors.As(err, &e) {
		return e
	}
	return nil
}
