package usecase

import (
	"errors"
	"fmt"
)

// DomainError: erro de regra de negócio/entrada, visível ao operador.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

type ErrorKind string

const (
	KindExternalAPI     ErrorKind = "external_api_failure"
	KindBudgetExhausted ErrorKind = "budget_exhausted"
	KindDataQuality     ErrorKind = "data_quality_failure"
	KindGeneration      ErrorKind = "generation_failure"
	KindPersistence     ErrorKind = "persistence_failure"
)

// PipelineError é a falha técnica de um worker, classificada pelo tipo de recuperação.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newPipelineError(kind ErrorKind, op string, err error) error {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// KindOf devolve o tipo do primeiro PipelineError da cadeia, ou "".
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
