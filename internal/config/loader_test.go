package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.OptimizerURL, convey.ShouldEqual, "http://localhost:5000")
				convey.So(cfg.SlotMinutes, convey.ShouldEqual, 1440)
				convey.So(cfg.HistoryLimit, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SCHED_ADDR", ":8080")
			_ = os.Setenv("SCHED_OPTIMIZER_URL", "http://optimizer:7000")
			_ = os.Setenv("SCHED_SLOT_MINUTES", "60")
			_ = os.Setenv("SCHED_WORKDAY_HOURS", "7.5")
			_ = os.Setenv("SCHED_DEFAULT_STRICTNESS", "strict")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.OptimizerURL, convey.ShouldEqual, "http://optimizer:7000")
				convey.So(cfg.SlotMinutes, convey.ShouldEqual, 60)
				convey.So(cfg.WorkdayHours, convey.ShouldEqual, 7.5)
				convey.So(cfg.DefaultStrictness, convey.ShouldEqual, "strict")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# plant floor defaults
addr: ":9090"
optimizer_url: "http://solver.local:5000"
optimizer_timeout_ms: 60000
history_dsn: ":memory:"
scenario_workers: 3
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SCHED_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.OptimizerURL, convey.ShouldEqual, "http://solver.local:5000")
				convey.So(cfg.OptimizerTimeoutMS, convey.ShouldEqual, 60000)
				convey.So(cfg.HistoryDSN, convey.ShouldEqual, ":memory:")
				convey.So(cfg.ScenarioWorkers, convey.ShouldEqual, 3)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info") // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
scenario_workers: 3
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SCHED_CONFIG", tmpFile)
			_ = os.Setenv("SCHED_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")       // Overridden by env
				convey.So(cfg.ScenarioWorkers, convey.ShouldEqual, 3) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SCHED_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SCHED_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("SCHED_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SCHED_SLOT_MINUTES", "hourly")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown strictness", func() {
			_ = os.Setenv("SCHED_DEFAULT_STRICTNESS", "lenient")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"SCHED_CONFIG",
		"SCHED_ADDR",
		"SCHED_OPTIMIZER_URL",
		"SCHED_SLOT_MINUTES",
		"SCHED_WORKDAY_HOURS",
		"SCHED_DEFAULT_STRICTNESS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "sched-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
