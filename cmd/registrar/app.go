package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bitcollege/registrar/config"
	"github.com/bitcollege/registrar/internal/application/command"
	"github.com/bitcollege/registrar/internal/application/eventhandler"
	"github.com/bitcollege/registrar/internal/application/query"
	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/numbering"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/internal/infrastructure/messaging"
	"github.com/bitcollege/registrar/internal/infrastructure/persistence/inmem"
	"github.com/bitcollege/registrar/internal/infrastructure/persistence/postgres"
	"github.com/bitcollege/registrar/internal/infrastructure/persistence/redis"
	"github.com/bitcollege/registrar/internal/infrastructure/scheduler/jobs"
	"github.com/bitcollege/registrar/pkg/logger"
)

// courseCacheTTL bounds how stale a cached course may be.
const courseCacheTTL = 5 * time.Minute

type standingSeeder interface {
	SeedStandings(ctx context.Context, all []standing.Standing) error
}

type sequencePeeker interface {
	Peek(ctx context.Context, category numbering.Category) (int64, error)
}

// app holds every wired component for one CLI invocation.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db    *postgres.Connection
	cache *redis.Cache
	bus   shared.EventBus

	students      student.Repository
	courses       course.Repository
	registrations student.RegistrationRepository
	standings     standingSeeder
	allocator     numbering.Allocator
	locker        command.StudentLocker

	standingStats *eventhandler.OnStandingChangedHandler

	assigner     *command.IdentifierAssigner
	reconcile    *command.ReconcileStandingHandler
	enrol        *command.EnrolStudentHandler
	createCourse *command.CreateCourseHandler
	register     *command.RegisterCourseHandler
	submitGrade  *command.SubmitGradeHandler
	tuition      *query.TuitionHandler

	closers []func()
}

// newApp connects to the configured backends and builds the handlers.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (a *app, err error) {
	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.App.Store == config.BackendPostgres || cfg.Allocation.Backend == config.BackendPostgres {
		pgCfg := postgres.DefaultConfig(cfg.Database.URL)
		pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		log.Debug("connecting to database")
		a.db, err = postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, a.db.Close)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.RedisEnabled() {
		redisCfg := redis.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
		redisCfg.KeyPrefix = cfg.Redis.KeyPrefix

		a.cache, err = redis.NewCache(ctx, redisCfg)
		switch {
		case err == nil:
			a.closers = append(a.closers, func() { _ = a.cache.Close() })
		case cfg.Allocation.Backend == config.BackendRedis:
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		default:
			log.Warn("redis unavailable, continuing without it", logger.Err(err))
			a.cache = nil
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	if a.cache != nil {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:      redis.NewEventChannel(a.cache),
			ChannelName: cfg.Redis.EventsChannel,
			Logger:      log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start event bus: %w", err)
		}
		a.bus = bus
	} else {
		a.bus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: log})
	}
	a.closers = append(a.closers, func() { _ = a.bus.Close() })

	a.standingStats = eventhandler.NewOnStandingChangedHandler(log)
	if err := a.bus.Subscribe(shared.EventStandingChanged, a.standingStats.Handle); err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	memDB := inmem.NewDB()
	switch cfg.App.Store {
	case config.BackendPostgres:
		a.students = postgres.NewStudentRepository(a.db)
		a.courses = postgres.NewCourseRepository(a.db)
		a.registrations = postgres.NewRegistrationRepository(a.db)
		a.standings = postgres.NewStandingRepository(a.db)
	default:
		a.students = inmem.NewStudentRepository(memDB)
		a.courses = inmem.NewCourseRepository(memDB)
		a.registrations = inmem.NewRegistrationRepository(memDB)
		a.standings = inmem.NewStandingRepository(memDB)
	}
	if a.cache != nil {
		a.courses = redis.NewCourseCache(a.courses, a.cache, courseCacheTTL, log)
	}

	switch cfg.Allocation.Backend {
	case config.BackendPostgres:
		a.allocator = postgres.NewSequenceAllocator(a.db)
	case config.BackendRedis:
		a.allocator = redis.NewSequenceAllocator(a.cache)
	default:
		a.allocator = inmem.NewSequenceAllocator(memDB)
	}

	if a.cache != nil {
		a.locker = redis.NewStudentLocker(a.cache, redis.LockConfig{
			TTL:          cfg.Reconcile.LockTTL,
			Wait:         cfg.Reconcile.LockWait,
			PollInterval: cfg.Reconcile.LockPollInterval,
		}, log)
	} else {
		a.locker = inmem.NewStudentLocker()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	a.assigner = command.NewIdentifierAssigner(a.allocator, command.IdentifierAssignerConfig{
		RetryAttempts:    cfg.Allocation.RetryAttempts,
		BreakerThreshold: cfg.Allocation.BreakerThreshold,
		BreakerTimeout:   cfg.Allocation.BreakerTimeout,
	}, a.bus, log)
	a.reconcile = command.NewReconcileStandingHandler(a.students, a.locker, a.bus, log)
	a.enrol = command.NewEnrolStudentHandler(a.students, a.assigner, a.reconcile, log)
	a.createCourse = command.NewCreateCourseHandler(a.courses, a.assigner, log)
	a.register = command.NewRegisterCourseHandler(a.students, a.courses, a.registrations, a.assigner, a.locker, log)
	a.submitGrade = command.NewSubmitGradeHandler(a.registrations, a.courses, a.students, a.reconcile, a.bus, log)
	a.tuition = query.NewTuitionHandler(a.students, a.courses)

	return a, nil
}

// seedStandings writes the standing lookup table. Students reference it, so
// it runs before any command touches the store.
func (a *app) seedStandings(ctx context.Context) error {
	if err := a.standings.SeedStandings(ctx, standing.All()); err != nil {
		return fmt.Errorf("failed to seed standings: %w", err)
	}
	return nil
}

// rosterJob builds the job that reconciles every student.
func (a *app) rosterJob() *jobs.ReconcileRosterJob {
	return jobs.NewReconcileRosterJob(a.students, a.reconcile, a.log, jobs.ReconcileRosterConfig{
		Concurrency: a.cfg.Reconcile.Concurrency,
	})
}

// peeker returns the allocator's read-only view, if it has one.
func (a *app) peeker() (sequencePeeker, bool) {
	p, ok := a.allocator.(sequencePeeker)
	return p, ok
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
