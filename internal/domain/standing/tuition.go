package standing

// History - то, что правилам оплаты нужно знать о студенте.
// Реализуется доменной сущностью студента.
type History interface {
	// GPA возвращает средний балл; ok == false, пока оценок нет.
	GPA() (gpa float64, ok bool)

	// RegistrationCount возвращает число регистраций на курсы.
	RegistrationCount() int

	// LatestRegistrationGraded сообщает, выставлена ли оценка по последней
	// регистрации. Для пустой истории - false.
	LatestRegistrationGraded() bool
}

// Пороговые значения поправок к оплате.
const (
	// CompletionRegistrations - число регистраций, после которого студент
	// считается близким к завершению программы.
	CompletionRegistrations = 5

	suspendedPoorGPA     = 0.75
	suspendedVeryPoorGPA = 0.50
	suspendedPoorFactor  = 1.3
	suspendedWorstFactor = 1.6

	probationCompletionFactor = 1.035

	honoursCompletionFactor = 0.15
	honoursBonusGPA         = 4.25
	honoursBonus            = 0.02
)

// TuitionFactor возвращает множитель стоимости курса для студента в статусе s.
// Итоговая сумма = множитель × базовая стоимость курса.
//
// Пустая история регистраций не является ошибкой: поправки, зависящие от
// регистраций, просто не применяются.
func TuitionFactor(s Standing, h History) float64 {
	factor := s.baseFactor
	gpa, hasGPA := h.GPA()

	switch s.id {
	case SuspendedID:
		if hasGPA && gpa < suspendedPoorGPA {
			factor = suspendedPoorFactor
		}
		if hasGPA && gpa < suspendedVeryPoorGPA {
			factor = suspendedWorstFactor
		}

	case ProbationID:
		if nearCompletion(h) {
			factor = probationCompletionFactor
		}

	case RegularID:
		// без поправок

	case HonoursID:
		// Скидка за завершение и надбавка за высокий GPA взаимоисключающие.
		if nearCompletion(h) {
			factor = honoursCompletionFactor
		} else if hasGPA && gpa > honoursBonusGPA {
			factor += honoursBonus
		}
	}

	return factor
}

func nearCompletion(h History) bool {
	return h.RegistrationCount() >= CompletionRegistrations && h.LatestRegistrationGraded()
}
