// Package standing содержит конечный автомат академического статуса студента
// (Suspended → Probation → Regular → Honours) и правила расчёта коэффициента
// оплаты обучения для каждого статуса.
//
// Пакет не имеет внешних зависимостей: четыре статуса - неизменяемые
// константы процесса, идентификаторы которых совпадают с первичными ключами
// строк справочника в хранилище.
package standing

import (
	"fmt"
	"math"

	"github.com/bitcollege/registrar/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// ID - стабильный идентификатор статуса. Значения хранятся в БД как внешний
// ключ студента, поэтому их нельзя переупорядочивать.
type ID int

const (
	SuspendedID ID = 1
	ProbationID ID = 2
	RegularID   ID = 3
	HonoursID   ID = 4
)

// Границы шкалы GPA.
const (
	MinGPA = 0.0
	MaxGPA = 4.5
)

// MaxTransitions - максимальное число переходов до неподвижной точки:
// из крайнего статуса в противоположный.
const MaxTransitions = 3

// ══════════════════════════════════════════════════════════════════════════════
// STANDING
// ══════════════════════════════════════════════════════════════════════════════

// Standing - один из четырёх академических статусов.
// Значение неизменяемое; сравнивать статусы можно через ID().
type Standing struct {
	id         ID
	label      string
	rank       int
	lower      float64
	upper      float64
	baseFactor float64
}

// ID возвращает стабильный идентификатор статуса.
func (s Standing) ID() ID { return s.id }

// Label возвращает отображаемое название статуса ("Suspended", "Honours", ...).
func (s Standing) Label() string { return s.label }

// LowerLimit возвращает нижнюю (включённую) границу диапазона GPA.
func (s Standing) LowerLimit() float64 { return s.lower }

// UpperLimit возвращает верхнюю границу диапазона GPA. Граница исключена
// для всех статусов, кроме потолочного.
func (s Standing) UpperLimit() float64 { return s.upper }

// BaseTuitionFactor возвращает базовый коэффициент оплаты до применения
// индивидуальных поправок.
func (s Standing) BaseTuitionFactor() float64 { return s.baseFactor }

// IsZero сообщает, что значение не инициализировано.
func (s Standing) IsZero() bool { return s.id == 0 }

// IsFloor сообщает, что ниже статуса нет.
func (s Standing) IsFloor() bool { return s.rank == 0 }

// IsCeiling сообщает, что выше статуса нет.
func (s Standing) IsCeiling() bool { return s.rank == len(registry)-1 }

// Contains проверяет, попадает ли GPA в диапазон статуса.
// Диапазон полуоткрытый [lower, upper), у потолочного статуса - закрытый.
func (s Standing) Contains(gpa float64) bool {
	if math.IsNaN(gpa) || gpa < s.lower {
		return false
	}
	if s.IsCeiling() {
		return gpa <= s.upper
	}
	return gpa < s.upper
}

// Higher возвращает соседний статус выше текущего.
func (s Standing) Higher() (Standing, bool) {
	if s.IsZero() || s.IsCeiling() {
		return Standing{}, false
	}
	return registry[s.rank+1], true
}

// Lower возвращает соседний статус ниже текущего.
func (s Standing) Lower() (Standing, bool) {
	if s.IsZero() || s.IsFloor() {
		return Standing{}, false
	}
	return registry[s.rank-1], true
}

// String реализует fmt.Stringer.
func (s Standing) String() string {
	if s.IsZero() {
		return "Unknown"
	}
	return s.label
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// registry упорядочен по рангу: индекс массива совпадает с rank.
var registry = [...]Standing{
	{id: SuspendedID, label: "Suspended", rank: 0, lower: 0.00, upper: 1.00, baseFactor: 1.1},
	{id: ProbationID, label: "Probation", rank: 1, lower: 1.00, upper: 2.00, baseFactor: 1.075},
	{id: RegularID, label: "Regular", rank: 2, lower: 2.00, upper: 3.70, baseFactor: 1.0},
	{id: HonoursID, label: "Honours", rank: 3, lower: 3.70, upper: 4.50, baseFactor: 0.9},
}

// Канонические экземпляры статусов.
var (
	Suspended = registry[0]
	Probation = registry[1]
	Regular   = registry[2]
	Honours   = registry[3]
)

// All возвращает все статусы в порядке возрастания ранга.
func All() []Standing {
	out := make([]Standing, len(registry))
	copy(out, registry[:])
	return out
}

// Get возвращает статус по идентификатору.
func Get(id ID) (Standing, error) {
	for _, s := range registry {
		if s.id == id {
			return s, nil
		}
	}
	return Standing{}, shared.ErrUnknownStanding.Wrap(fmt.Errorf("id %d", id))
}

// MustGet как Get, но паникует на неизвестном идентификаторе.
// Используется только для констант, заведомо присутствующих в реестре.
func MustGet(id ID) Standing {
	s, err := Get(id)
	if err != nil {
		panic(err)
	}
	return s
}

// ForGPA возвращает статус, диапазон которого содержит gpa.
// Значения за пределами шкалы прижимаются к крайним статусам.
func ForGPA(gpa float64) Standing {
	if math.IsNaN(gpa) || gpa < MinGPA {
		return Suspended
	}
	for _, s := range registry {
		if s.Contains(gpa) {
			return s
		}
	}
	return Honours
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateTransition выполняет ровно один шаг автомата.
//
// Если GPA лежит выше диапазона статуса и есть статус выше - переход на
// один ранг вверх; если ниже диапазона и есть статус ниже - на один ранг
// вниз; иначе статус не меняется. Отсутствующий GPA (или NaN) переходов
// не вызывает.
//
// Повторное применение до неподвижной точки - задача вызывающего кода.
func EvaluateTransition(s Standing, gpa *float64) Standing {
	if s.IsZero() || gpa == nil || math.IsNaN(*gpa) {
		return s
	}
	g := *gpa

	if !s.IsCeiling() && g >= s.upper {
		if next, ok := s.Higher(); ok {
			return next
		}
	}
	if g < s.lower {
		if prev, ok := s.Lower(); ok {
			return prev
		}
	}
	return s
}
