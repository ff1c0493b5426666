package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sessiond/cmd/internal/store/pgstore"
)

// PostgresCatalog unions the role's permissions with those of every group
// the account belongs to.
type PostgresCatalog struct {
	db    pgstore.DB
	query string
}

func NewPostgresCatalog(db pgstore.DB, schema string) (*PostgresCatalog, error) {
	if db == nil {
		return nil, errors.New("permissions: nil db")
	}
	sc, err := pgstore.CheckSchema(schema)
	if err != nil {
		return nil, err
	}
	q := `SELECT permission FROM ` + pgstore.Ident(sc, "role_permissions") + ` WHERE role = $2
		UNION
		SELECT gp.permission
		  FROM ` + pgstore.Ident(sc, "account_groups") + ` ag
		  JOIN ` + pgstore.Ident(sc, "group_permissions") + ` gp ON gp.group_name = ag.group_name
		 WHERE ag.account_id = $1
		ORDER BY 1`
	return &PostgresCatalog{db: db, query: q}, nil
}

func (c *PostgresCatalog) EffectivePermissions(ctx context.Context, accountID, role string) ([]string, error) {
	rows, err := c.db.Query(ctx, c.query, accountID, strings.ToLower(strings.TrimSpace(role)))
	if err != nil {
		return nil, fmt.Errorf("permissions: query: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("permissions: scan: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("permissions: rows: %w", err)
	}
	return normalize(perms), nil
}
