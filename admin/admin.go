// Package admin exposes the bundle lifecycle operations as an HTTP JSON
// API for the operator console. Orchestration outcomes are serialized
// as-is, they carry their own success flags; only malformed requests turn
// into HTTP errors.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/otakit/ota-server/admin/adminconfig"
	"github.com/otakit/ota-server/bundle"
	"github.com/otakit/ota-server/sizecache"
	"github.com/otakit/ota-server/store"
)

func New() Admin {
	return new(adminServer)
}

const CName = "admin"

var log = logger.NewNamed(CName)

type Admin interface {
	app.ComponentRunnable
}

type adminServer struct {
	mux    *http.ServeMux
	server *http.Server
	config adminconfig.Config
	handlers
}

func (a *adminServer) Name() (name string) {
	return CName
}

func (a *adminServer) Init(ap *app.App) (err error) {
	a.bundles = ap.MustComponent(bundle.CName).(bundle.Service)
	a.store = ap.MustComponent(store.CName).(store.Store)
	a.sizes = ap.MustComponent(sizecache.CName).(sizecache.SizeCache)
	a.config = ap.MustComponent("config").(adminconfig.ConfigGetter).GetAdmin()
	a.mux = http.NewServeMux()
	a.handlers.init(a.mux)
	a.server = &http.Server{Addr: a.config.Addr, Handler: a.mux}
	return
}

func (a *adminServer) Run(ctx context.Context) (err error) {
	var errCh = make(chan error)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()
	select {
	case err = <-errCh:
		return err
	case <-time.After(200 * time.Millisecond):
		log.Info("admin server started", zap.String("addr", a.config.Addr))
		return
	}
}

func (a *adminServer) Close(ctx context.Context) (err error) {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}
