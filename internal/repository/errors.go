package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate 唯一键冲突
var ErrDuplicate = errors.New("duplicate entry")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
