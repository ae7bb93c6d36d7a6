package limiter

import (
	"fmt"
	"net/url"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
)

// MySQLDSN builds the go-sql-driver data source name of db.
func MySQLDSN(db config.DB) string {
	out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
	)

	if db.Extras != "" {
		out += "?" + db.Extras
	}

	return out
}

// PostgresDSN builds the postgres connection uri of db.
func PostgresDSN(db config.DB) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Name,
		RawQuery: db.Extras,
	}

	return u.String()
}
