package database

import (
	"errors"
	"strconv"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// DriverCode extracts the server-side error code from a driver error: the
// MySQL error number or the PostgreSQL SQLSTATE. It returns "" when err comes
// from neither driver.
func DriverCode(err error) string {
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return "mysql:" + strconv.Itoa(int(myErr.Number))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "postgres:" + pgErr.Code
	}
	return ""
}
