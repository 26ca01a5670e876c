package config_test

import (
	"context"
	"testing"

	"github.com/flowstate/pulse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ShardCount, convey.ShouldEqual, 8)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
			convey.So(cfg.FlowWindowSeconds, convey.ShouldEqual, 300)
			convey.So(cfg.HistoryLimit, convey.ShouldEqual, 100)
			convey.So(cfg.AlertLogLimit, convey.ShouldEqual, 200)
			convey.So(cfg.ExportDir, convey.ShouldEqual, "./data/exports")
			convey.So(cfg.ExportIntervalMS, convey.ShouldEqual, 1_000)
			convey.So(cfg.SnapshotPath, convey.ShouldEqual, "./data/pulse.db")
			convey.So(cfg.SnapshotIntervalMS, convey.ShouldEqual, 5_000)
		})
	})
}
