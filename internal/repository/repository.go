// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
)

// DB 仓储所需的最小数据库能力
// *sql.DB、*sql.Tx 和 database.DB 均满足该接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxRunner 支持事务的数据库连接
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// ListFilter 列表查询过滤条件
type ListFilter struct {
	Strategy string
	Limit    int
	Offset   int
}
