package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/studio-booking-backend/internal/api"
	"github.com/nekogravitycat/studio-booking-backend/internal/auth"
	"github.com/nekogravitycat/studio-booking-backend/internal/availability"
	"github.com/nekogravitycat/studio-booking-backend/internal/booking"
	"github.com/nekogravitycat/studio-booking-backend/internal/config"
	"github.com/nekogravitycat/studio-booking-backend/internal/notify"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/storage"
	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       *slog.Logger

	// StoreBackend is one of config.BackendFile, config.BackendPostgres or config.BackendMemory.
	StoreBackend string
	DataDir      string
	DBPool       *pgxpool.Pool
	// SeedUsers populates the user directory of the memory backend.
	SeedUsers []user.User

	JWTSecret string
	JWTTTL    time.Duration

	HorizonDays int
	MaxRetries  int
	Location    *time.Location

	Dispatch     notify.DispatcherConfig
	KafkaBrokers []string
	KafkaTopic   string
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router              *gin.Engine
	JWTManager          *auth.JWTManager
	Dispatcher          *notify.Dispatcher
	UserService         user.Service
	BookingService      booking.Service
	AvailabilityService availability.Service

	closers []func() error
}

// NewContainer initializes all modules and returns the container.
// The dispatcher is not started; call Start.
func NewContainer(cfg Config) (*Container, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.StoreBackend == config.BackendPostgres && cfg.DBPool == nil {
		return nil, errors.New("postgres backend requires a database pool")
	}

	c := &Container{}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Collections
	users, err := openUsers(cfg)
	if err != nil {
		return nil, err
	}
	bookings, err := openCollection[booking.Booking](cfg, "bookings")
	if err != nil {
		return nil, err
	}
	slots, err := openCollection[availability.Slot](cfg, "slots")
	if err != nil {
		return nil, err
	}
	vacations, err := openCollection[availability.Vacation](cfg, "vacations")
	if err != nil {
		return nil, err
	}

	// User Module
	var userRepo user.Repository
	if cfg.StoreBackend == config.BackendPostgres {
		userRepo = user.NewPgxRepository(cfg.DBPool)
	} else {
		userRepo = user.NewCollectionRepository(users)
	}
	userService := user.NewService(userRepo)

	// Side effects
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		c.closers = append(c.closers, kafkaNotifier.Close)
		notifier = kafkaNotifier
	}
	var audit notify.AuditRecorder = notify.NewLogAuditRecorder(log)
	if cfg.StoreBackend == config.BackendPostgres {
		audit = notify.NewPgAuditRecorder(cfg.DBPool)
	}
	dispatcher := notify.NewDispatcher(notifier, audit, log, cfg.Dispatch)

	// Availability Module
	bookingRepo := booking.NewStoreRepository(bookings)
	availabilityRepo := availability.NewStoreRepository(slots, vacations)
	availabilityService := availability.NewService(availabilityRepo, userService, bookingRepo, log)

	// Booking Module
	bookingService := booking.NewService(bookingRepo, userService, availabilityService, dispatcher, log, booking.Config{
		HorizonDays: cfg.HorizonDays,
		MaxRetries:  cfg.MaxRetries,
		Location:    cfg.Location,
	})

	// API Router Config
	routerParams := api.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		UserService:         userService,
		BookingService:      bookingService,
		AvailabilityService: availabilityService,
		JWTManager:          jwtManager,
	}

	c.Router = api.NewRouter(routerParams)
	c.JWTManager = jwtManager
	c.Dispatcher = dispatcher
	c.UserService = userService
	c.BookingService = bookingService
	c.AvailabilityService = availabilityService
	return c, nil
}

// Start launches the background workers.
func (c *Container) Start() {
	c.Dispatcher.Start()
}

// Shutdown drains pending side effects, then releases external clients.
func (c *Container) Shutdown(ctx context.Context) error {
	errs := []error{c.Dispatcher.Close(ctx)}
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

func openCollection[T any](cfg Config, name string) (storage.Collection[T], error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return storage.NewPostgresCollection[T](cfg.DBPool, name), nil
	case config.BackendMemory:
		return storage.NewMemoryCollection[T](name), nil
	case config.BackendFile, "":
		col, err := storage.NewLocalCollection[T](cfg.DataDir, name)
		if err != nil {
			return nil, fmt.Errorf("open %s collection: %w", name, err)
		}
		return col, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// openUsers returns the user collection; the postgres backend reads public.users instead.
func openUsers(cfg Config) (storage.Collection[user.User], error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return nil, nil
	case config.BackendMemory:
		return storage.NewMemoryCollection("users", cfg.SeedUsers...), nil
	}
	return openCollection[user.User](cfg, "users")
}
