// Package tester provides the shared test harness: a throwaway sqlite
// database plus in-memory doubles for the external collaborators.
package tester

import (
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/emrgen/canvas/internal/cache"
	"github.com/emrgen/canvas/internal/model"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testPath = "../../.test/"
)

var (
	db *gorm.DB
)

func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	err := os.MkdirAll(testPath+"/db", os.ModePerm)
	if err != nil {
		panic(err)
	}

	db, err = gorm.Open(sqlite.Open(testPath+"db/canvas.db"), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

func RemoveDBFile() {
	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
}

// Redis spins up an in-process redis and returns a cache bound to it.
// The caller owns the server's lifetime through the returned closer.
func Redis(t interface{ Cleanup(func()) }) *cache.Redis {
	server, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return cache.NewRedisFromClient(client)
}
