// Package db provides the embedded migrations and seed catalog.
package db

import "embed"

// Migrations holds the goose migration files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"

// Catalog contains the default recipes and ingredients in YAML.
//
//go:embed seed/catalog.yaml
var Catalog []byte
