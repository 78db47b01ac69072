package monitor

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// MySQL server error numbers signalling credential or privilege denial.
const (
	mysqlErrDBAccessDenied         = 1044
	mysqlErrAccessDenied           = 1045
	mysqlErrKillDenied             = 1095
	mysqlErrTableAccessDenied      = 1142
	mysqlErrColumnAccessDenied     = 1143
	mysqlErrSpecificAccessDenied   = 1227
	mysqlErrProcAccessDenied       = 1370
	mysqlErrAccessDeniedNoPassword = 1698
)

// PostgreSQL SQLSTATE codes signalling credential or privilege denial.
const (
	pgInvalidAuthorization  = "28000"
	pgInvalidPassword       = "28P01"
	pgInsufficientPrivilege = "42501"
)

// IsAccessDeniedError reports whether err is a backend's credential or
// privilege denial, as opposed to a generic connectivity or query failure.
func IsAccessDeniedError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDBAccessDenied,
			mysqlErrAccessDenied,
			mysqlErrKillDenied,
			mysqlErrTableAccessDenied,
			mysqlErrColumnAccessDenied,
			mysqlErrSpecificAccessDenied,
			mysqlErrProcAccessDenied,
			mysqlErrAccessDeniedNoPassword:
			return true
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidAuthorization, pgInvalidPassword, pgInsufficientPrivilege:
			return true
		}
	}
	return false
}

// CheckPermissions verifies the monitor's credentials can connect to its
// nodes and run the given diagnostic query. Only access-denial failures
// count against the check: a node that is unreachable for an unrelated
// reason does not block, since the check exists to surface permission
// misconfiguration rather than connectivity health. A monitor with no
// nodes fails immediately.
func (m *Monitor) CheckPermissions(ctx context.Context, connector Connector, query string) bool {
	nodes := m.Nodes()
	if len(nodes) == 0 {
		m.logger.Error().Msg("monitor is missing the servers parameter")
		return false
	}

	password, err := m.secrets.Decrypt(m.password)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to decrypt monitor credentials")
		return false
	}

	ok := true
	for _, node := range nodes {
		srv := node.Server()

		db, err := connector.Open(srv, m.user, password, m.timeouts)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, m.timeouts.Connect)
			err = db.PingContext(pingCtx)
			cancel()
		}
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("node", srv.Name).
				Str("address", srv.Address()).
				Msg("failed to connect when checking monitor credentials")
			if IsAccessDeniedError(err) {
				ok = false
			}
			if db != nil {
				db.Close()
			}
			continue
		}

		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("node", srv.Name).
				Str("query", query).
				Str("user", m.user).
				Msg("failed to execute query when checking monitor permissions")
			if IsAccessDeniedError(err) {
				ok = false
			}
		} else {
			rows.Close()
		}
		db.Close()
	}

	return ok
}
