// Package store provides durable backends for task records.
//
// A backend is chosen by location string:
//
//	tasks.json                  JSON file, rewritten on every change
//	sqlite:///var/lib/tasks.db  SQLite database (modernc.org/sqlite)
//	mem://  file:///dir  s3://bucket  gs://bucket
//
// Every backend keeps one record per task id; Put overwrites.
package store

import (
	"context"
	"fmt"
	"strings"

	"bilireel/engine"
)

// Open 根据地址选择后端
func Open(ctx context.Context, location string) (engine.Backend, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("store: empty location")
	case strings.HasPrefix(location, "sqlite://"):
		return backend(OpenSQLite(strings.TrimPrefix(location, "sqlite://")))
	case strings.Contains(location, "://"):
		return backend(OpenBucket(ctx, location))
	default:
		return backend(OpenJSONFile(location))
	}
}

// backend 出错时返回真正的 nil 接口
func backend[T engine.Backend](b T, err error) (engine.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
