// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// TUITION QUERY
// Считает стоимость курса для студента с учётом его академического статуса.
// ══════════════════════════════════════════════════════════════════════════════

// TuitionQuery содержит параметры запроса стоимости.
type TuitionQuery struct {
	// StudentID - внутренний ID студента.
	StudentID int64

	// CourseID - внутренний ID курса.
	CourseID int64
}

// Validate проверяет корректность параметров запроса.
func (q TuitionQuery) Validate() error {
	if q.StudentID <= 0 {
		return shared.ErrInvalidStudentID.Wrap(fmt.Errorf("id %d", q.StudentID))
	}
	if q.CourseID <= 0 {
		return shared.WrapError("course", "Validate", shared.ErrInvalidID, "invalid course ID", fmt.Errorf("id %d", q.CourseID))
	}
	return nil
}

// TuitionDTO - рассчитанная стоимость курса.
type TuitionDTO struct {
	StudentID    int64  `json:"student_id"`
	CourseID     int64  `json:"course_id"`
	CourseNumber string `json:"course_number"`

	// Standing - текущий статус студента.
	Standing string `json:"standing"`

	// Factor - множитель стоимости.
	Factor float64 `json:"factor"`

	// BaseAmount - стоимость курса из каталога.
	BaseAmount decimal.Decimal `json:"base_amount"`

	// BilledAmount = Factor × BaseAmount, округлено до копеек.
	BilledAmount decimal.Decimal `json:"billed_amount"`
}

// TuitionHandler обрабатывает TuitionQuery.
type TuitionHandler struct {
	students student.Repository
	courses  course.Repository
}

// NewTuitionHandler создаёт новый обработчик.
func NewTuitionHandler(students student.Repository, courses course.Repository) *TuitionHandler {
	return &TuitionHandler{students: students, courses: courses}
}

// Handle выполняет запрос.
func (h *TuitionHandler) Handle(ctx context.Context, q TuitionQuery) (*TuitionDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	stud, err := h.students.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, err
	}
	crs, err := h.courses.GetByID(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}
	st, err := stud.Standing()
	if err != nil {
		return nil, err
	}

	factor := standing.TuitionFactor(st, stud)

	return &TuitionDTO{
		StudentID:    stud.ID,
		CourseID:     crs.ID,
		CourseNumber: crs.CourseNumber,
		Standing:     st.Label(),
		Factor:       factor,
		BaseAmount:   crs.TuitionAmount,
		BilledAmount: BilledAmount(factor, crs.TuitionAmount),
	}, nil
}

// BilledAmount умножает стоимость на коэффициент и округляет до 0.01
// (половина - от нуля).
func BilledAmount(factor float64, amount decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(factor).Mul(amount).Round(2)
}
