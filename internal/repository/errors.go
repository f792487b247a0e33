package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRatingExists is returned when a ticket already carries a rating.
var ErrRatingExists = errors.New("ticket already rated")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
