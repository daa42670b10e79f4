package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewDefaults(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := New()

		Convey("Then it has sensible defaults", func() {
			So(cfg.Addr, ShouldEqual, ":8080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.StorageType, ShouldEqual, StorageMemory)
			So(cfg.MaxVotePoints, ShouldEqual, 10)
			So(cfg.ShrubLeaderboardDefaultLimit, ShouldEqual, 50)
			So(cfg.ShrubLeaderboardMaxLimit, ShouldEqual, 100)
			So(cfg.ConnectTimeout, ShouldEqual, 10*time.Second)
			So(cfg.MetricsEnabled, ShouldBeTrue)
		})

		Convey("Then it validates", func() {
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a default config", t, func() {
		cfg := New()

		cases := []struct {
			name   string
			mutate func(*Config)
		}{
			{"empty addr", func(c *Config) { c.Addr = "" }},
			{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
			{"unknown storage", func(c *Config) { c.StorageType = "cassandra" }},
			{"redis without url", func(c *Config) { c.StorageType = StorageRedis }},
			{"postgres without dsn", func(c *Config) { c.StorageType = StoragePostgres }},
			{"sqlite without path", func(c *Config) { c.StorageType = StorageSQLite; c.SQLitePath = "" }},
			{"mongo without uri", func(c *Config) { c.StorageType = StorageMongo }},
			{"zero vote points", func(c *Config) { c.MaxVotePoints = 0 }},
			{"zero timeout", func(c *Config) { c.ConnectTimeout = 0 }},
			{"negative default limit", func(c *Config) { c.ShrubLeaderboardDefaultLimit = -1 }},
			{"default above max", func(c *Config) { c.ShrubLeaderboardDefaultLimit = 200 }},
		}

		for _, tc := range cases {
			Convey("When "+tc.name, func() {
				tc.mutate(cfg)
				err := cfg.Validate()

				Convey("Then validation fails with ErrInvalidConfig", func() {
					So(err, ShouldNotBeNil)
					So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
				})
			})
		}

		Convey("When a backend has what it needs", func() {
			cfg.StorageType = StorageRedis
			cfg.RedisURL = "redis://localhost:6379/0"

			Convey("Then validation passes", func() {
				So(cfg.Validate(), ShouldBeNil)
			})
		})
	})
}

func TestParseLogLevel(t *testing.T) {
	Convey("Log level names map to slog levels", t, func() {
		for name, want := range map[string]slog.Level{
			"debug":   slog.LevelDebug,
			"":        slog.LevelInfo,
			"INFO":    slog.LevelInfo,
			"warn":    slog.LevelWarn,
			"warning": slog.LevelWarn,
			"error":   slog.LevelError,
		} {
			got, err := ParseLogLevel(name)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := ParseLogLevel("verbose")
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})
}
