// Package migrations схема базы данных бота
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations все миграции в порядке применения.
// Имя миграции берется из имени файла, в котором она зарегистрирована.
var Migrations = migrate.NewMigrations()
