package repository

import (
	"database/sql"

	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pipecraft/pipecraft-api/internal/utils"
	"github.com/pkg/errors"
)

type ConnectionRepository interface {
	List() ([]*models.Connection, error)
	Get(id int64) (*models.Connection, error)
	GetByName(name string) (*models.Connection, error)
	// Resolve returns the connection with its credential decrypted, for
	// opening a live database handle. Never exposed over HTTP.
	Resolve(id int64) (*models.Connection, error)
	Create(conn *models.Connection) (*models.Connection, error)
	Update(conn *models.Connection) (*models.Connection, error)
	Delete(id int64) error
}

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = "id, name, db_type, host, port, db_name, username, is_source, is_destination, created_at, updated_at"

func scanConnection(row interface{ Scan(...interface{}) error }, conn *models.Connection) error {
	return row.Scan(&conn.ID, &conn.Name, &conn.DBType, &conn.Host, &conn.Port, &conn.Database,
		&conn.Username, &conn.IsSource, &conn.IsDestination, &conn.CreatedAt, &conn.UpdatedAt)
}

func (r *connectionRepository) List() ([]*models.Connection, error) {
	rows, err := r.db.Query("SELECT " + connectionColumns + " FROM pipecraft.connections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		conn := &models.Connection{}
		if err := scanConnection(rows, conn); err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}
	return connections, rows.Err()
}

func (r *connectionRepository) Get(id int64) (*models.Connection, error) {
	conn := &models.Connection{}
	row := r.db.QueryRow("SELECT "+connectionColumns+" FROM pipecraft.connections WHERE id = $1", id)
	if err := scanConnection(row, conn); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "connection %d", id)
		}
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) GetByName(name string) (*models.Connection, error) {
	conn := &models.Connection{}
	row := r.db.QueryRow("SELECT "+connectionColumns+" FROM pipecraft.connections WHERE name = $1", name)
	if err := scanConnection(row, conn); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "connection %q", name)
		}
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) Resolve(id int64) (*models.Connection, error) {
	conn := &models.Connection{}
	var passwordEnc []byte
	err := r.db.QueryRow(
		"SELECT id, name, db_type, host, port, db_name, username, password_enc, is_source, is_destination, created_at, updated_at FROM pipecraft.connections WHERE id = $1",
		id,
	).Scan(&conn.ID, &conn.Name, &conn.DBType, &conn.Host, &conn.Port, &conn.Database,
		&conn.Username, &passwordEnc, &conn.IsSource, &conn.IsDestination, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "connection %d", id)
		}
		return nil, err
	}

	password, err := utils.DecryptPassword(passwordEnc)
	if err != nil {
		return nil, errors.Wrapf(err, "decrypt credential for connection %d", id)
	}
	conn.Password = password
	return conn, nil
}

func (r *connectionRepository) Create(conn *models.Connection) (*models.Connection, error) {
	passwordEnc, err := utils.EncryptPassword(conn.Password)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt credential")
	}
	err = r.db.QueryRow(
		`INSERT INTO pipecraft.connections (name, db_type, host, port, db_name, username, password_enc, is_source, is_destination)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		conn.Name, conn.DBType, conn.Host, conn.Port, conn.Database, conn.Username, passwordEnc, conn.IsSource, conn.IsDestination,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Update leaves name untouched: the name is the external handle and is
// immutable after creation. An empty password keeps the stored credential.
func (r *connectionRepository) Update(conn *models.Connection) (*models.Connection, error) {
	var (
		res sql.Result
		err error
	)
	if conn.Password != "" {
		var passwordEnc []byte
		passwordEnc, err = utils.EncryptPassword(conn.Password)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt credential")
		}
		res, err = r.db.Exec(
			`UPDATE pipecraft.connections
			 SET db_type = $1, host = $2, port = $3, db_name = $4, username = $5, password_enc = $6,
			     is_source = $7, is_destination = $8, updated_at = NOW()
			 WHERE id = $9`,
			conn.DBType, conn.Host, conn.Port, conn.Database, conn.Username, passwordEnc,
			conn.IsSource, conn.IsDestination, conn.ID,
		)
	} else {
		res, err = r.db.Exec(
			`UPDATE pipecraft.connections
			 SET db_type = $1, host = $2, port = $3, db_name = $4, username = $5,
			     is_source = $6, is_destination = $7, updated_at = NOW()
			 WHERE id = $8`,
			conn.DBType, conn.Host, conn.Port, conn.Database, conn.Username,
			conn.IsSource, conn.IsDestination, conn.ID,
		)
	}
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "connection %d", conn.ID)
	}
	return r.Get(conn.ID)
}

func (r *connectionRepository) Delete(id int64) error {
	res, err := r.db.Exec("DELETE FROM pipecraft.connections WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "connection %d", id)
	}
	return nil
}
