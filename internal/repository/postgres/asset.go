package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

const assetColumns = `id, title, category, description, location, acquisition_date, state, user_id, tag_id, created_on, updated_on`

type assetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) repository.AssetRepository {
	return &assetRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(s rowScanner) (*domain.Asset, error) {
	a := &domain.Asset{}
	var userID sql.NullInt32
	var tagID sql.NullString
	err := s.Scan(&a.ID, &a.Title, &a.Category, &a.Description, &a.Location, &a.AcquisitionDate,
		&a.State, &userID, &tagID, &a.CreatedOn, &a.UpdatedOn)
	if err != nil {
		return nil, err
	}
	a.UserID = int32Ptr(userID)
	a.TagID = stringPtr(tagID)
	return a, nil
}

func (r *assetRepository) Create(ctx context.Context, a *domain.Asset) error {
	query := `INSERT INTO assets (title, category, description, location, acquisition_date, state, user_id, tag_id, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	now := time.Now()
	a.CreatedOn, a.UpdatedOn = now, now
	logger.DatabaseCall("INSERT", "assets", "title", a.Title, "state", a.State)
	err := r.db.QueryRowContext(ctx, query, a.Title, a.Category, a.Description, a.Location, a.AcquisitionDate,
		a.State, nullInt32(a.UserID), nullString(a.TagID), a.CreatedOn, a.UpdatedOn).Scan(&a.ID)
	logger.DatabaseResult("INSERT", 1, err, "assetID", a.ID)
	if isUniqueViolation(err) {
		return domain.NewConflict("create asset", "tag %q already in use", *a.TagID)
	}
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id int32) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	a, err := scanAsset(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "get asset", "asset", id)
	}
	return a, nil
}

func (r *assetRepository) Update(ctx context.Context, a *domain.Asset) error {
	query := `UPDATE assets SET title=$1, category=$2, description=$3, location=$4, acquisition_date=$5,
	          state=$6, user_id=$7, tag_id=$8, updated_on=$9 WHERE id=$10`
	a.UpdatedOn = time.Now()
	logger.DatabaseCall("UPDATE", "assets", "assetID", a.ID)
	res, err := r.db.ExecContext(ctx, query, a.Title, a.Category, a.Description, a.Location, a.AcquisitionDate,
		a.State, nullInt32(a.UserID), nullString(a.TagID), a.UpdatedOn, a.ID)
	if isUniqueViolation(err) {
		return domain.NewConflict("update asset", "tag %q already in use", *a.TagID)
	}
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return checkAffected(res, "update asset", "asset", a.ID)
}

// UpdateIfState is the conditional write that serializes competing
// transitions across processes.
func (r *assetRepository) UpdateIfState(ctx context.Context, a *domain.Asset, expected domain.AssetState) error {
	query := `UPDATE assets SET state=$1, user_id=$2, updated_on=$3 WHERE id=$4 AND state=$5`
	logger.DatabaseCall("UPDATE", "assets", "assetID", a.ID, "expected", expected, "next", a.State)
	a.UpdatedOn = time.Now()
	res, err := r.db.ExecContext(ctx, query, a.State, nullInt32(a.UserID), a.UpdatedOn, a.ID, expected)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "assetID", a.ID)
		return fmt.Errorf("update asset state: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "assetID", a.ID)
	if err != nil {
		return fmt.Errorf("update asset state: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, a.ID); err != nil {
			return err
		}
		return domain.NewConflict("update asset state", "asset %d is no longer %s", a.ID, expected)
	}
	return nil
}

func (r *assetRepository) Delete(ctx context.Context, id int32) error {
	logger.DatabaseCall("DELETE", "assets", "assetID", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return checkAffected(res, "delete asset", "asset", id)
}

func (r *assetRepository) List(ctx context.Context) ([]domain.Asset, error) {
	logger.DatabaseCall("SELECT", "assets")
	rows, err := r.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY id`)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		assets = append(assets, *a)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(assets)), err)
	return assets, err
}
