package entity

import "time"

// PaidWorker identifica quem consome crédito externo.
type PaidWorker string

const (
	WorkerHunter PaidWorker = "hunter"
	WorkerSpy    PaidWorker = "spy"
)

// SpendUsage são as unidades pagas já consumidas no dia e no mês (UTC).
type SpendUsage struct {
	Today int
	Month int
}

func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
