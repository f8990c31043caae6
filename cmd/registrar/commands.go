package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bitcollege/registrar/internal/application/command"
	"github.com/bitcollege/registrar/internal/application/eventhandler"
	"github.com/bitcollege/registrar/internal/application/query"
	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/numbering"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/infrastructure/persistence/postgres"
	"github.com/bitcollege/registrar/internal/infrastructure/scheduler"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Apply pending database migrations",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipSeed: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if a.db == nil {
					return errors.New("migrate requires APP_STORE=postgres")
				}
				applied, err := postgres.NewMigrator(a.db).Migrate(ctx)
				if err != nil {
					return err
				}
				if err := a.seedStandings(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
				return nil
			})
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write and print the academic standing lookup table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				for _, s := range standing.All() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%-9s\t[%.2f, %.2f]\t%.3f\n",
						s.ID(), s.Label(), s.LowerLimit(), s.UpperLimit(), s.BaseTuitionFactor())
				}
				return nil
			})
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NUMBERING AND GRADING
// ══════════════════════════════════════════════════════════════════════════════

func newNextNumberCommand(opts *rootOptions) *cobra.Command {
	var peek bool

	c := &cobra.Command{
		Use:   "next-number <category>",
		Short: "Issue the next number of a sequence",
		Long: "Categories: student, graded-course, mastery-course, audit-course, registration " +
			"(or the counter names NextStudent, NextGradedCourse, ...).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := numbering.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if peek {
					p, ok := a.peeker()
					if !ok {
						return fmt.Errorf("allocator backend %s cannot peek", a.cfg.Allocation.Backend)
					}
					n, err := p.Peek(ctx, category)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), n)
					return nil
				}

				var out string
				switch category {
				case numbering.GradedCourse, numbering.MasteryCourse, numbering.AuditCourse:
					out, err = a.assigner.CourseNumber(ctx, courseTypeOf(category))
				case numbering.Student:
					var n int64
					n, err = a.assigner.StudentNumber(ctx)
					out = strconv.FormatInt(n, 10)
				default:
					var n int64
					n, err = a.assigner.RegistrationNumber(ctx)
					out = strconv.FormatInt(n, 10)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&peek, "peek", false, "show the next number without taking it")
	return c
}

func courseTypeOf(category numbering.Category) grading.CourseType {
	switch category {
	case numbering.GradedCourse:
		return grading.CourseGraded
	case numbering.MasteryCourse:
		return grading.CourseMastery
	default:
		return grading.CourseAudit
	}
}

func newGradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grade <score> <course-type>",
		Short: "Convert a raw score into a grade point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[0], err)
			}
			grade, err := grading.GradeValue(score, grading.ParseCourseType(args[1]))
			if err != nil {
				return err
			}
			if value, ok := grade.Value(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.1f\n", grade, value)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), grade)
			}
			return nil
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS AND COURSES
// ══════════════════════════════════════════════════════════════════════════════

func newEnrolCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enrol <first-name> <last-name>",
		Short: "Enrol a new student",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.enrol.Handle(ctx, command.EnrolStudentCommand{
					FirstName:     args[0],
					LastName:      args[1],
					CorrelationID: uuid.NewString(),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":             res.Student.ID,
					"student_number": res.Student.StudentNumber,
					"name":           res.Student.FullName(),
					"standing":       res.Standing.Label(),
				})
			})
		},
	}
}

func newCourseCommand(opts *rootOptions) *cobra.Command {
	var (
		title       string
		courseType  string
		credits     float64
		tuition     string
		maxAttempts int
	)

	c := &cobra.Command{
		Use:   "course",
		Short: "Add a course to the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := decimal.NewFromString(tuition)
			if err != nil {
				return fmt.Errorf("invalid tuition %q: %w", tuition, err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				crs, err := a.createCourse.Handle(ctx, command.CreateCourseCommand{
					Title:           title,
					CreditHours:     credits,
					TuitionAmount:   amount,
					Type:            grading.ParseCourseType(courseType),
					MaximumAttempts: maxAttempts,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), crs)
			})
		},
	}
	c.Flags().StringVar(&title, "title", "", "course title")
	c.Flags().StringVar(&courseType, "type", "graded", "graded, mastery or audit")
	c.Flags().Float64Var(&credits, "credits", 3, "credit hours")
	c.Flags().StringVar(&tuition, "tuition", "0", "base tuition amount")
	c.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempt limit for mastery courses")
	_ = c.MarkFlagRequired("title")
	return c
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var notes string

	c := &cobra.Command{
		Use:   "register <student-id> <course-id>",
		Short: "Register a student for a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentID, courseID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				reg, err := a.register.Handle(ctx, command.RegisterCourseCommand{
					StudentID: studentID,
					CourseID:  courseID,
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), reg)
			})
		},
	}
	c.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return c
}

func newSubmitGradeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit-grade <registration-id> <score>",
		Short: "Record a score and reconcile the student's standing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			regID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid registration id %q: %w", args[0], err)
			}
			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[1], err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.submitGrade.Handle(ctx, command.SubmitGradeCommand{
					RegistrationID: regID,
					Score:          score,
					CorrelationID:  uuid.NewString(),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"registration_id": res.RegistrationID,
					"grade":           res.Grade,
					"gpa":             res.GPA,
					"standing":        res.Reconcile.Standing.Label(),
					"path":            pathLabels(res.Reconcile.Path),
				})
			})
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDING AND TUITION
// ══════════════════════════════════════════════════════════════════════════════

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "reconcile [student-id]",
		Short: "Bring stored standings in line with current GPAs",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if all {
					return reconcileAll(ctx, cmd.OutOrStdout(), a)
				}
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid student id %q: %w", args[0], err)
				}
				res, err := a.reconcile.Handle(ctx, command.ReconcileStandingCommand{
					StudentID:     id,
					CorrelationID: uuid.NewString(),
				})
				if err != nil {
					return err
				}
				printReconcile(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&all, "all", false, "reconcile every student")
	return c
}

// reconcileAll runs the roster job once and prints every change.
func reconcileAll(ctx context.Context, out io.Writer, a *app) error {
	stats, err := a.rosterJob().Execute(ctx)
	if stats == nil {
		return err
	}
	for _, res := range stats.Changes {
		printReconcile(out, res)
	}
	fmt.Fprintf(out, "reconciled %d student(s), %d changed, %d failed\n",
		stats.Total, stats.Changed, stats.Failed)
	return err
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	c := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile every student periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sched := scheduler.New(scheduler.Config{Logger: a.log})
				if err := sched.Register(a.rosterJob(), scheduler.NewIntervalSchedule(interval), true); err != nil {
					return err
				}
				if err := sched.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()

				stats := a.standingStats.Stats()
				a.log.Info("shutting down",
					logger.Int("promotions", stats.Promotions),
					logger.Int("demotions", stats.Demotions))
				return sched.Stop()
			})
		},
	}
	c.Flags().DurationVar(&interval, "interval", time.Minute, "time between roster runs")
	return c
}

func printReconcile(out io.Writer, res *command.ReconcileStandingResult) {
	fmt.Fprintf(out, "%d\t%s\n", res.StudentID, strings.Join(pathLabels(res.Path), " -> "))
}

func newTuitionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tuition <student-id> <course-id>",
		Short: "Price a course for a student",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentID, courseID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				dto, err := a.tuition.Handle(ctx, query.TuitionQuery{StudentID: studentID, CourseID: courseID})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto)
			})
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func newEventsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print domain events published by registrar instances until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if a.cache == nil {
					return errors.New("events requires Redis")
				}
				printer := eventhandler.NewEventPrinter(cmd.OutOrStdout())
				if err := a.bus.SubscribeAll(printer.Handle); err != nil {
					return err
				}
				a.log.Info("listening for events", logger.String("channel", a.cfg.Redis.EventsChannel))
				<-ctx.Done()
				return nil
			})
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func parseIDs(studentArg, courseArg string) (int64, int64, error) {
	studentID, err := strconv.ParseInt(studentArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid student id %q: %w", studentArg, err)
	}
	courseID, err := strconv.ParseInt(courseArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid course id %q: %w", courseArg, err)
	}
	return studentID, courseID, nil
}

func pathLabels(path []standing.Standing) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = s.Label()
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
