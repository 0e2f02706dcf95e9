// Package db carries the SQL migrations embedded into the binary so
// deployments need no migrations directory on disk.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
