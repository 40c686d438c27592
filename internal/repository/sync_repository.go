package repository

import (
	"database/sql"

	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pkg/errors"
)

type SyncRepository interface {
	List() ([]*models.Sync, error)
	Get(id int64) (*models.Sync, error)
	GetByName(name string) (*models.Sync, error)
	Create(s *models.Sync) (*models.Sync, error)
	Update(s *models.Sync) (*models.Sync, error)
	Delete(id int64) error
}

type syncRepository struct {
	db *sql.DB
}

func NewSyncRepository(db *sql.DB) SyncRepository {
	return &syncRepository{db: db}
}

const syncSelect = `
	SELECT
		s.id, s.name, s.description,
		s.source_connection_id, s.source_table,
		s.dest_connection_id, s.dest_schema, s.dest_table,
		s.write_mode, s.created_at, s.updated_at,
		sc.id, sc.name, sc.db_type, sc.host, sc.port, sc.db_name, sc.username, sc.is_source, sc.is_destination, sc.created_at, sc.updated_at,
		dc.id, dc.name, dc.db_type, dc.host, dc.port, dc.db_name, dc.username, dc.is_source, dc.is_destination, dc.created_at, dc.updated_at
	FROM pipecraft.syncs s
	JOIN pipecraft.connections sc ON s.source_connection_id = sc.id
	JOIN pipecraft.connections dc ON s.dest_connection_id = dc.id`

func scanSync(row interface{ Scan(...interface{}) error }, s *models.Sync) error {
	return row.Scan(
		&s.ID, &s.Name, &s.Description,
		&s.SourceConnectionID, &s.SourceTable,
		&s.DestConnectionID, &s.DestSchema, &s.DestTable,
		&s.WriteMode, &s.CreatedAt, &s.UpdatedAt,
		&s.SourceConnection.ID, &s.SourceConnection.Name, &s.SourceConnection.DBType,
		&s.SourceConnection.Host, &s.SourceConnection.Port, &s.SourceConnection.Database,
		&s.SourceConnection.Username, &s.SourceConnection.IsSource, &s.SourceConnection.IsDestination,
		&s.SourceConnection.CreatedAt, &s.SourceConnection.UpdatedAt,
		&s.DestConnection.ID, &s.DestConnection.Name, &s.DestConnection.DBType,
		&s.DestConnection.Host, &s.DestConnection.Port, &s.DestConnection.Database,
		&s.DestConnection.Username, &s.DestConnection.IsSource, &s.DestConnection.IsDestination,
		&s.DestConnection.CreatedAt, &s.DestConnection.UpdatedAt,
	)
}

func (r *syncRepository) List() ([]*models.Sync, error) {
	rows, err := r.db.Query(syncSelect + " ORDER BY s.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var syncs []*models.Sync
	for rows.Next() {
		s := &models.Sync{}
		if err := scanSync(rows, s); err != nil {
			return nil, err
		}
		syncs = append(syncs, s)
	}
	return syncs, rows.Err()
}

func (r *syncRepository) Get(id int64) (*models.Sync, error) {
	s := &models.Sync{}
	row := r.db.QueryRow(syncSelect+" WHERE s.id = $1", id)
	if err := scanSync(row, s); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "sync %d", id)
		}
		return nil, err
	}
	return s, nil
}

func (r *syncRepository) GetByName(name string) (*models.Sync, error) {
	s := &models.Sync{}
	row := r.db.QueryRow(syncSelect+" WHERE s.name = $1", name)
	if err := scanSync(row, s); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "sync %q", name)
		}
		return nil, err
	}
	return s, nil
}

func (r *syncRepository) Create(s *models.Sync) (*models.Sync, error) {
	err := r.db.QueryRow(
		`INSERT INTO pipecraft.syncs (name, description, source_connection_id, source_table, dest_connection_id, dest_schema, dest_table, write_mode)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		s.Name, s.Description, s.SourceConnectionID, s.SourceTable,
		s.DestConnectionID, s.DestSchema, s.DestTable, s.WriteMode,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r.Get(s.ID)
}

func (r *syncRepository) Update(s *models.Sync) (*models.Sync, error) {
	res, err := r.db.Exec(
		`UPDATE pipecraft.syncs
		 SET description = $1, source_connection_id = $2, source_table = $3,
		     dest_connection_id = $4, dest_schema = $5, dest_table = $6, write_mode = $7,
		     updated_at = NOW()
		 WHERE id = $8`,
		s.Description, s.SourceConnectionID, s.SourceTable,
		s.DestConnectionID, s.DestSchema, s.DestTable, s.WriteMode, s.ID,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "sync %d", s.ID)
	}
	return r.Get(s.ID)
}

func (r *syncRepository) Delete(id int64) error {
	res, err := r.db.Exec("DELETE FROM pipecraft.syncs WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "sync %d", id)
	}
	return nil
}
