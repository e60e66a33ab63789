package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/config"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.OptimizerTimeout(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.Slot(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.WorkdayHours, convey.ShouldEqual, 8.0)
			convey.So(cfg.ScenarioWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Strictness(), convey.ShouldEqual, validation.StrictnessModerate)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given configs with unusable values", t, func() {
		mutations := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"relative optimizer": func(c *config.Config) { c.OptimizerURL = "optimizer:5000/api" },
			"zero slot":          func(c *config.Config) { c.SlotMinutes = 0 },
			"long workday":       func(c *config.Config) { c.WorkdayHours = 25 },
			"no workers":         func(c *config.Config) { c.ScenarioWorkers = 0 },
			"odd strictness":     func(c *config.Config) { c.DefaultStrictness = "lenient" },
			"zero history limit": func(c *config.Config) { c.HistoryLimit = 0 },
			"xml log format":     func(c *config.Config) { c.LogFormat = "xml" },
		}

		for name, mutate := range mutations {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then validation rejects "+name, func() {
				convey.So(cfg.Validate(), convey.ShouldWrap, config.ErrInvalidConfig)
			})
		}
	})
}
