package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a booking store using an existing database connection
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	log.Info("DATABASE", "Creating booking storage with existing database connection")

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize booking tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize booking tables: %w", err)
	}

	log.Info("DATABASE", "Booking storage initialized successfully with existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating bookings table if not exists")

	bookingsQuery := `
    CREATE TABLE IF NOT EXISTS bookings (
        booking_id VARCHAR(36) PRIMARY KEY,
        user_id VARCHAR(64) NOT NULL,
        reference VARCHAR(128) NOT NULL,
        status VARCHAR(50) NOT NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(bookingsQuery); err != nil {
		return fmt.Errorf("failed to create bookings table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Booking tables and indexes ready")
	return nil
}

// CreateBooking saves a booking to the database
func (s *PostgreSQLStore) CreateBooking(booking *models.Booking) error {
	s.log.LogDatabase("INSERT", "bookings", fmt.Sprintf("Saving booking %s", booking.BookingID))

	query := `
    INSERT INTO bookings (
        booking_id, user_id, reference, status, created_at
    ) VALUES ($1, $2, $3, $4, $5)
    `

	_, err := s.db.Exec(query,
		booking.BookingID, booking.UserID, booking.Reference, booking.Status, booking.CreatedAt,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save booking %s: %s", booking.BookingID, err.Error()))
		return fmt.Errorf("failed to save booking: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "bookings", fmt.Sprintf("Booking %s saved successfully", booking.BookingID))
	return nil
}

// GetBooking retrieves a booking by ID
func (s *PostgreSQLStore) GetBooking(id string) (*models.Booking, error) {
	s.log.LogDatabase("SELECT", "bookings", fmt.Sprintf("Fetching booking %s", id))

	query := `
    SELECT booking_id, user_id, reference, status, created_at
    FROM bookings WHERE booking_id = $1
    `

	booking := &models.Booking{}
	err := s.db.QueryRow(query, id).Scan(
		&booking.BookingID, &booking.UserID, &booking.Reference, &booking.Status, &booking.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "bookings", fmt.Sprintf("Booking %s not found", id))
			return nil, fmt.Errorf("booking not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get booking %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "bookings", fmt.Sprintf("Booking %s fetched successfully", id))
	return booking, nil
}

// DeleteBooking removes a booking. Deleting an absent booking is a no-op so
// that compensation can run twice without new side effects.
func (s *PostgreSQLStore) DeleteBooking(id string) error {
	s.log.LogDatabase("DELETE", "bookings", fmt.Sprintf("Deleting booking %s", id))

	query := `DELETE FROM bookings WHERE booking_id = $1`

	if _, err := s.db.Exec(query, id); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to delete booking %s: %s", id, err.Error()))
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is alive
func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
