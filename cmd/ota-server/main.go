package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/otakit/ota-server/admin"
	"github.com/otakit/ota-server/bundle"
	"github.com/otakit/ota-server/bundle/bundlerepo"
	"github.com/otakit/ota-server/config"
	"github.com/otakit/ota-server/db"
	"github.com/otakit/ota-server/sizecache"
	"github.com/otakit/ota-server/store"
)

var log = logger.NewNamed("main")

var flagConfigFile = flag.String("c", "etc/config.yml", "path to the config file")

func main() {
	flag.Parse()

	conf, err := config.NewFromFile(*flagConfigFile)
	if err != nil {
		log.Fatal("can't open config file", zap.Error(err))
	}

	a := new(app.App)
	a.Register(conf).
		Register(db.New()).
		Register(store.New()).
		Register(bundlerepo.New()).
		Register(bundle.New()).
		Register(sizecache.New()).
		Register(admin.New())

	ctx := context.Background()
	if err = a.Start(ctx); err != nil {
		log.Fatal("can't start app", zap.Error(err))
	}
	log.Info("app started")

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	sig := <-exit
	log.Info("received exit signal, stopping app...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err = a.Close(ctx); err != nil {
		log.Fatal("close error", zap.Error(err))
	}
	log.Info("app stopped")
}
