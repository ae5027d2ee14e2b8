package sightingrepository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Amund211/blockfinder/internal/adapters/database"
	"github.com/Amund211/blockfinder/internal/config"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/reporting"
	"github.com/Amund211/blockfinder/internal/strutils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// A bus seen at the same place again within this window is not stored again
const duplicateWindow = time.Minute

type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("blockfinder/sightingrepository/postgres")
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: tracer,
	}
}

type dbSighting struct {
	ID        string    `db:"id"`
	Block     string    `db:"block"`
	BusNumber string    `db:"bus_number"`
	Location  string    `db:"location"`
	Source    string    `db:"source"`
	SeenAt    time.Time `db:"seen_at"`
}

func (p *Postgres) StoreSightings(ctx context.Context, location domain.BlockLocation) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreSightings")
	defer span.End()

	if !strutils.BlockIsNormalized(location.Block) {
		err := fmt.Errorf("block is not normalized")
		reporting.Report(ctx, err, map[string]string{
			"block": location.Block,
		})
		return err
	}

	if len(location.Buses) == 0 {
		return nil
	}

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block": location.Block,
		})
		return err
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(p.schema)))
	if err != nil {
		err := fmt.Errorf("failed to set search path: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block":  location.Block,
			"schema": p.schema,
		})
		return err
	}

	stored := 0
	for _, bus := range location.Buses {
		dbID, err := uuid.NewV7()
		if err != nil {
			err := fmt.Errorf("failed to generate db id: %w", err)
			reporting.Report(ctx, err, map[string]string{
				"block": location.Block,
			})
			return err
		}

		result, err := txx.ExecContext(
			ctx,
			`INSERT INTO sightings
			(id, block, bus_number, location, source, seen_at)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE NOT EXISTS (
				SELECT 1 FROM sightings
				WHERE
					block = $2 AND
					bus_number = $3 AND
					location = $4 AND
					seen_at > $7
			)`,
			dbID.String(),
			location.Block,
			bus.Number,
			bus.Location,
			location.Source,
			location.QueriedAt,
			location.QueriedAt.Add(-duplicateWindow),
		)
		if err != nil {
			err := fmt.Errorf("failed to insert sighting: %w", err)
			reporting.Report(ctx, err, map[string]string{
				"block":     location.Block,
				"busNumber": bus.Number,
			})
			return err
		}

		if rows, err := result.RowsAffected(); err == nil {
			stored += int(rows)
		}
	}

	err = txx.Commit()
	if err != nil {
		err := fmt.Errorf("failed to commit transaction: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block": location.Block,
		})
		return err
	}

	logging.FromContext(ctx).Info("Stored sightings", "block", location.Block, "stored", stored)

	return nil
}

func (p *Postgres) GetSightings(ctx context.Context, block string, limit int) ([]domain.Sighting, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetSightings")
	defer span.End()

	if !strutils.BlockIsNormalized(block) {
		err := fmt.Errorf("block is not normalized")
		reporting.Report(ctx, err, map[string]string{
			"block": block,
		})
		return nil, err
	}

	if limit < 1 {
		err := fmt.Errorf("invalid limit")
		reporting.Report(ctx, err, map[string]string{
			"block": block,
			"limit": strconv.Itoa(limit),
		})
		return nil, err
	}

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block": block,
		})
		return nil, err
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(p.schema)))
	if err != nil {
		err := fmt.Errorf("failed to set search path: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block":  block,
			"schema": p.schema,
		})
		return nil, err
	}

	var dbSightings []dbSighting
	err = txx.SelectContext(
		ctx,
		&dbSightings,
		`SELECT
			id, block, bus_number, location, source, seen_at
		FROM sightings
		WHERE block = $1
		ORDER BY seen_at DESC, id DESC
		LIMIT $2`,
		block,
		limit,
	)
	if err != nil {
		err := fmt.Errorf("failed to select sightings: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block": block,
			"limit": strconv.Itoa(limit),
		})
		return nil, err
	}

	err = txx.Commit()
	if err != nil {
		err := fmt.Errorf("failed to commit transaction: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"block": block,
		})
		return nil, err
	}

	sightings := make([]domain.Sighting, 0, len(dbSightings))
	for _, dbSighting := range dbSightings {
		sightings = append(sightings, domain.Sighting{
			Block:     dbSighting.Block,
			BusNumber: dbSighting.BusNumber,
			Location:  dbSighting.Location,
			Source:    dbSighting.Source,
			SeenAt:    dbSighting.SeenAt,
		})
	}

	return sightings, nil
}

type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) StoreSightings(ctx context.Context, location domain.BlockLocation) error {
	return nil
}

func (s *Stub) GetSightings(ctx context.Context, block string, limit int) ([]domain.Sighting, error) {
	return []domain.Sighting{}, nil
}

// NewPostgresOrStub connects to the configured database and migrates it.
//
// Development falls back to a stub when no local database is running.
func NewPostgresOrStub(ctx context.Context, conf config.Config, logger *slog.Logger) (SightingRepository, error) {
	schemaName := database.GetSchemaName(!conf.IsProduction())

	logger.InfoContext(ctx, "Initializing database connection")
	db, err := database.NewCloudsqlPostgresDatabase(conf)
	if err != nil {
		if conf.IsDevelopment() {
			logger.WarnContext(ctx, "Failed to connect to database. Falling back to stub repository.", "error", err.Error())
			return NewStub(), nil
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewPostgres(db, schemaName), nil
}
