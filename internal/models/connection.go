package models

import (
	"fmt"
	"time"
)

// Supported database dialects.
const (
	DBTypePostgres = "postgres"
	DBTypeMySQL    = "mysql"
)

func ValidDBType(t string) bool {
	return t == DBTypePostgres || t == DBTypeMySQL
}

type Connection struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"` // unique, immutable after creation
	DBType        string    `json:"db_type" db:"db_type"`
	Host          string    `json:"host" db:"host"`
	Port          int       `json:"port" db:"port"`
	Database      string    `json:"database" db:"database"`
	Username      string    `json:"username" db:"username"`
	Password      string    `json:"password,omitempty" db:"-"` // plaintext in requests only; stored encrypted
	IsSource      bool      `json:"is_source" db:"is_source"`
	IsDestination bool      `json:"is_destination" db:"is_destination"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DSN builds the driver-specific connection string for this connection.
func (c *Connection) DSN() (string, error) {
	switch c.DBType {
	case DBTypePostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			c.Username, c.Password, c.Host, c.Port, c.Database), nil
	case DBTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			c.Username, c.Password, c.Host, c.Port, c.Database), nil
	default:
		return "", fmt.Errorf("unknown db_type: %s", c.DBType)
	}
}
