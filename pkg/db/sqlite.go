package db

import (
	"database/sql"
	"sync"

	"github.com/angelmondragon/geodirectory-backend/pkg/types"
	"github.com/mattn/go-sqlite3"
)

// SQLiteGeoDriver is a sqlite3 driver with point accessors registered on every
// connection, so bounding box predicates can run without PostGIS.
const SQLiteGeoDriver = "sqlite3_geodir"

var registerSQLiteOnce sync.Once

// RegisterSQLiteGeoDriver registers SQLiteGeoDriver once and returns its name.
func RegisterSQLiteGeoDriver() string {
	registerSQLiteOnce.Do(func() {
		sql.Register(SQLiteGeoDriver, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("geo_x", pointX, true); err != nil {
					return err
				}
				return conn.RegisterFunc("geo_y", pointY, true)
			},
		})
	})
	return SQLiteGeoDriver
}

func pointX(encoded string) (float64, error) {
	var p types.GeographyPoint
	if err := p.Scan(encoded); err != nil {
		return 0, err
	}
	return p.Lng, nil
}

func pointY(encoded string) (float64, error) {
	var p types.GeographyPoint
	if err := p.Scan(encoded); err != nil {
		return 0, err
	}
	return p.Lat, nil
}
