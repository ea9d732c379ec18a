package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afroash/flaura/internal/models"
)

// EnsureUser records a user the first time they are seen
func (s *SQLStore) EnsureUser(ctx context.Context, userID string) (*models.User, error) {
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING"),
		userID, s.timeArg(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var createdAt string
	err = s.db.QueryRowContext(ctx, s.rebind("SELECT created_at FROM users WHERE id = ?"), userID).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user := &models.User{ID: userID}
	user.CreatedAt, _ = parseTimestamp(createdAt)
	return user, nil
}

// CreateSpace inserts a space, assigning an ID when it has none
func (s *SQLStore) CreateSpace(ctx context.Context, space *models.Space) error {
	if space.ID == "" {
		space.ID = uuid.NewString()
	}
	if space.CreatedAt.IsZero() {
		space.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO spaces (id, tag, color, icon, user_id, sensor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`),
		space.ID, space.Tag, space.Color, space.Icon, space.UserID, space.SensorID, s.timeArg(space.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert space: %w", err)
	}

	return nil
}

const spaceColumns = "id, tag, color, icon, user_id, sensor_id, created_at"

// ListSpaces returns the user's spaces, oldest first
func (s *SQLStore) ListSpaces(ctx context.Context, userID string) ([]*models.Space, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+spaceColumns+" FROM spaces WHERE user_id = ? ORDER BY created_at, id"),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query spaces: %w", err)
	}
	defer rows.Close()

	var spaces []*models.Space
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return spaces, nil
}

// GetSpace returns the space if it belongs to userID
func (s *SQLStore) GetSpace(ctx context.Context, userID, spaceID string) (*models.Space, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+spaceColumns+" FROM spaces WHERE id = ? AND user_id = ?"),
		spaceID, userID,
	)

	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	return space, nil
}

// DeleteSpace removes a space and every plant in it. It returns the number
// of plants removed.
func (s *SQLStore) DeleteSpace(ctx context.Context, userID, spaceID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, s.rebind("SELECT id FROM spaces WHERE id = ? AND user_id = ?"), spaceID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get space: %w", err)
	}

	result, err := tx.ExecContext(ctx, s.rebind("DELETE FROM plants WHERE space_id = ?"), spaceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete plants: %w", err)
	}
	plants, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM spaces WHERE id = ?"), spaceID); err != nil {
		return 0, fmt.Errorf("failed to delete space: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("space_id", spaceID).
		Int64("plants", plants).
		Msg("Deleted space")

	return plants, nil
}

// CreatePlant inserts a plant, assigning an ID when it has none
func (s *SQLStore) CreatePlant(ctx context.Context, plant *models.Plant) error {
	if plant.ID == "" {
		plant.ID = uuid.NewString()
	}
	if plant.CreatedAt.IsZero() {
		plant.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO plants (id, api_id, space_id, name, temperature, brightness, image_url, watered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		plant.ID, plant.APIID, plant.SpaceID, plant.Name,
		plant.IdealTemperature, plant.IdealBrightness,
		plant.ImageURL, plant.Watered, s.timeArg(plant.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert plant: %w", err)
	}

	return nil
}

// UpdatePlantReference stores freshly derived catalog fields
func (s *SQLStore) UpdatePlantReference(ctx context.Context, plant *models.Plant) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE plants SET name = ?, temperature = ?, brightness = ?, image_url = ?
		WHERE id = ?
	`),
		plant.Name, plant.IdealTemperature, plant.IdealBrightness, plant.ImageURL, plant.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update plant: %w", err)
	}

	return expectOne(result)
}

// SetPlantWatered updates the watered flag of an owned plant
func (s *SQLStore) SetPlantWatered(ctx context.Context, userID, plantID string, watered bool) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE plants SET watered = ?
		WHERE id = ? AND space_id IN (SELECT id FROM spaces WHERE user_id = ?)
	`),
		watered, plantID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update plant: %w", err)
	}

	return expectOne(result)
}

const plantColumns = "p.id, p.api_id, p.space_id, p.name, p.temperature, p.brightness, p.image_url, p.watered, p.created_at"

// GetPlant returns the plant if its space belongs to userID
func (s *SQLStore) GetPlant(ctx context.Context, userID, plantID string) (*models.Plant, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+plantColumns+`
		FROM plants p JOIN spaces sp ON sp.id = p.space_id
		WHERE p.id = ? AND sp.user_id = ?
	`), plantID, userID)

	plant, err := scanPlant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plant: %w", err)
	}

	return plant, nil
}

// ListPlants returns the plants of an owned space. An empty spaceID lists
// every plant of the user.
func (s *SQLStore) ListPlants(ctx context.Context, userID, spaceID string) ([]*models.Plant, error) {
	query := `
		SELECT ` + plantColumns + `
		FROM plants p JOIN spaces sp ON sp.id = p.space_id
		WHERE sp.user_id = ?`
	args := []interface{}{userID}
	if spaceID != "" {
		query += " AND p.space_id = ?"
		args = append(args, spaceID)
	}
	query += " ORDER BY p.created_at, p.id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plants: %w", err)
	}
	defer rows.Close()

	var plants []*models.Plant
	for rows.Next() {
		plant, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plant: %w", err)
		}
		plants = append(plants, plant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return plants, nil
}

// DeletePlant removes an owned plant
func (s *SQLStore) DeletePlant(ctx context.Context, userID, plantID string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM plants
		WHERE id = ? AND space_id IN (SELECT id FROM spaces WHERE user_id = ?)
	`), plantID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete plant: %w", err)
	}

	return expectOne(result)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSpace(row scanner) (*models.Space, error) {
	var sp models.Space
	var createdAt string

	if err := row.Scan(&sp.ID, &sp.Tag, &sp.Color, &sp.Icon, &sp.UserID, &sp.SensorID, &createdAt); err != nil {
		return nil, err
	}
	sp.CreatedAt, _ = parseTimestamp(createdAt)

	return &sp, nil
}

func scanPlant(row scanner) (*models.Plant, error) {
	var p models.Plant
	var temperature, brightness sql.NullFloat64
	var createdAt string

	err := row.Scan(&p.ID, &p.APIID, &p.SpaceID, &p.Name, &temperature, &brightness, &p.ImageURL, &p.Watered, &createdAt)
	if err != nil {
		return nil, err
	}

	if temperature.Valid {
		v := temperature.Float64
		p.IdealTemperature = &v
	}
	if brightness.Valid {
		v := brightness.Float64
		p.IdealBrightness = &v
	}
	p.CreatedAt, _ = parseTimestamp(createdAt)

	return &p, nil
}

func expectOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
