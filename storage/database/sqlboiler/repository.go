package boiledrepos

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/agape/core"
)

// repository holds what every sqlboiler repository needs: the executor used outside transactions.
type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// filterUUIDs drops the ids postgres would reject as uuid values.
func filterUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func affected(res sql.Result, msg string) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return int(n), nil
}

// conditions builds a WHERE clause with postgres placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

// add appends `expr`, replacing each "?" with the placeholder of the matching arg.
func (c *conditions) add(expr string, args ...interface{}) {
	for _, arg := range args {
		c.args = append(c.args, arg)
		expr = strings.Replace(expr, "?", "$"+strconv.Itoa(len(c.args)), 1)
	}
	c.clauses = append(c.clauses, expr)
}

func (c *conditions) in(column string, values []string) {
	if len(values) == 0 {
		c.clauses = append(c.clauses, "FALSE")
		return
	}
	placeholders := strmangle.Placeholders(true, len(values), len(c.args)+1, 1)
	for _, v := range values {
		c.args = append(c.args, v)
	}
	c.clauses = append(c.clauses, column+" IN ("+placeholders+")")
}

func (c conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func orderBy(ordering []core.DBOrdering, prefix string) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		ord.Field = prefix + ord.Field
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
