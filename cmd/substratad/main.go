// Command substratad is the persistent-world server of spec §1: it
// loads the object store, accepts game-protocol TCP connections,
// serves resources and the admin surface over HTTP, and relays voice
// over UDP. Startup sequencing and the runner-group shutdown fan-out
// are grounded on ais/daemon.go's daemonCtx/rungroup idiom, simplified
// to this server's much smaller runner set (no cluster membership, no
// dry-run).
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/golang/glog"

	"github.com/glaretechnologies/substrata-sub005/internal/admin"
	"github.com/glaretechnologies/substrata-sub005/internal/broadcast"
	"github.com/glaretechnologies/substrata-sub005/internal/config"
	"github.com/glaretechnologies/substrata-sub005/internal/conn"
	"github.com/glaretechnologies/substrata-sub005/internal/cos"
	"github.com/glaretechnologies/substrata-sub005/internal/metrics"
	"github.com/glaretechnologies/substrata-sub005/internal/reaper"
	"github.com/glaretechnologies/substrata-sub005/internal/resourcehttp"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/voice"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

var cli struct {
	configPath string
	usage      bool
}

func init() {
	flag.StringVar(&cli.configPath, "config", "", "path to substratad JSON config (defaults built in if omitted)")
	flag.BoolVar(&cli.usage, "h", false, "show usage and exit")
}

// runner is the common shape of every long-lived component this
// daemon starts, matching cos.Runner's Name/Run/Stop triplet in
// ais/daemon.go's rungroup without pulling in that package's cluster
// machinery.
type runner interface {
	Name() string
	Run() error
	Stop(error)
}

func main() {
	flag.Parse()
	if cli.usage {
		flag.Usage()
		os.Exit(0)
	}
	defer glog.Flush()

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		cos.ExitLogf("loading config: %v", err)
	}
	config.GCO.Put(cfg)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		cos.ExitLogf("opening store at %q: %v", cfg.Store.Path, err)
	}

	allWorlds, err := world.LoadAllWorldsState(st, cfg.Resource.BaseDir)
	if err != nil {
		cos.ExitLogf("loading world state: %v", err)
	}
	glog.Infof("loaded world state from %s", cfg.Store.Path)

	resourceReg := allWorlds.Resources

	disp := broadcast.NewDispatcher(cfg.Dispatch.SubscriberQueueDepth)

	var voiceRelay *voice.Relay
	voiceConn, err := net.ListenUDP("udp", mustResolveUDP(cfg.Net.VoiceAddr))
	if err != nil {
		cos.ExitLogf("binding voice UDP %q: %v", cfg.Net.VoiceAddr, err)
	}
	voiceRelay = voice.NewRelay(voiceConn)

	gameListener, err := net.Listen("tcp", cfg.Net.GameAddr)
	if err != nil {
		cos.ExitLogf("binding game TCP %q: %v", cfg.Net.GameAddr, err)
	}

	rs := []runner{
		&flushRunner{store: st, all: allWorlds, disp: disp, interval: cfg.Store.FlushInterval, compactMinFree: cfg.Store.CompactMinFree},
		&gameRunner{
			listener:    gameListener,
			all:         allWorlds,
			disp:        disp,
			uploadQuota: cfg.Resource.UploadQuota,
			tmpSubdir:   cfg.Resource.TmpSubdir,
			voiceRelay:  voiceRelay,
		},
		&voiceRunner{relay: voiceRelay},
		reaper.New(allWorlds, int64(cfg.Web.SessionMaxAge.Seconds()), int64(cfg.Web.PasswordResetTTL.Seconds()), time.Hour),
		&resourceHTTPRunner{addr: cfg.Net.ResourceAddr, srv: resourcehttp.NewServer(resourceReg)},
		&adminHTTPRunner{
			addr: cfg.Net.AdminAddr,
			srv:  admin.NewServer(allWorlds, cfg.Web.PublicFilesDir, cfg.Web.ChallengeDir, cfg.Web.ScreenshotDir, cfg.Web.PhotoDir, []byte(cfg.Web.JWTSigningKey)),
		},
	}

	os.Exit(runGroup(rs))
}

func mustResolveUDP(addr string) *net.UDPAddr {
	a, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		cos.ExitLogf("resolving voice UDP addr %q: %v", addr, err)
	}
	return a
}

// runGroup starts every runner, blocks for a termination signal or the
// first runner error, then stops the rest -- the same "first-exit wins,
// fan the stop out" shape as ais/daemon.go's rungroup.run, minus
// cluster-membership bookkeeping this daemon has no analogue for.
func runGroup(rs []runner) int {
	errCh := make(chan error, len(rs))
	for _, r := range rs {
		go func(r runner) {
			err := r.Run()
			if err != nil {
				glog.Warningf("runner [%s] exited with err: %v", r.Name(), err)
			}
			errCh <- err
		}(r)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var exitErr error
	select {
	case exitErr = <-errCh:
	case sig := <-sigCh:
		glog.Infof("received signal %v, shutting down", sig)
	}

	for _, r := range rs {
		r.Stop(exitErr)
	}
	// Drain the remaining completions so Stop() has a chance to
	// observe a clean finish before the process exits.
	for i := 0; i < len(rs)-1; i++ {
		<-errCh
	}

	if exitErr != nil {
		glog.Errorf("terminated with err: %v", exitErr)
		return 1
	}
	glog.Infoln("terminated OK")
	return 0
}

// flushRunner periodically calls AllWorldsState.FlushDirty on a tick,
// per spec §4.1's "flush dirty entities at an interval" requirement,
// and reports flush latency and the dispatcher's backlog to Prometheus.
// Every tick also checks whether dead bytes have piled up past
// cfg.Store.CompactMinFree and, if so, runs a compaction pass
// immediately afterwards -- compaction never overlaps a flush, since
// both run from this same single goroutine.
type flushRunner struct {
	store          *store.Store
	all            *world.AllWorldsState
	disp           *broadcast.Dispatcher
	interval       time.Duration
	compactMinFree int64
	stopCh         chan struct{}
}

func (r *flushRunner) Name() string { return "flush" }

func (r *flushRunner) Run() error {
	r.stopCh = make(chan struct{})
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return r.flushOnce()
		case <-ticker.C:
			if err := r.flushOnce(); err != nil {
				glog.Errorf("flush dirty state: %v", err)
			}
			if err := r.compactIfDue(); err != nil {
				glog.Errorf("compact store: %v", err)
			}
			metrics.DispatcherQueueDepth.Set(float64(r.disp.QueueDepth()))
		}
	}
}

func (r *flushRunner) flushOnce() error {
	start := time.Now()
	err := r.all.FlushDirty(r.store)
	if err == nil {
		err = r.store.Flush()
	}
	metrics.StoreFlushSeconds.Observe(time.Since(start).Seconds())
	return err
}

func (r *flushRunner) compactIfDue() error {
	if r.compactMinFree <= 0 || r.store.FreeBytes() < r.compactMinFree {
		return nil
	}
	start := time.Now()
	err := r.all.CompactStore(r.store)
	metrics.StoreCompactSeconds.Observe(time.Since(start).Seconds())
	return err
}

func (r *flushRunner) Stop(error) {
	close(r.stopCh)
}

// gameRunner accepts TCP connections and spawns one conn.Handler per
// client, matching the teacher's per-connection goroutine idiom used
// throughout its proxy/target request paths.
type gameRunner struct {
	listener    net.Listener
	all         *world.AllWorldsState
	disp        *broadcast.Dispatcher
	uploadQuota int64
	tmpSubdir   string
	voiceRelay  *voice.Relay
}

func (r *gameRunner) Name() string { return "game" }

func (r *gameRunner) Run() error {
	for {
		c, err := r.listener.Accept()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
		go r.serve(c)
	}
}

func (r *gameRunner) serve(c net.Conn) {
	h := conn.NewHandler(c, r.all, r.disp, r.uploadQuota, r.tmpSubdir)
	h.SetVoiceRelayHooks(r.voiceRelay.RegisterAvatar, r.voiceRelay.UnregisterAvatar)
	h.SetVoiceForward(r.voiceRelay.Forward)
	h.Run()
}

func (r *gameRunner) Stop(error) {
	_ = r.listener.Close()
}

// voiceRunner owns the UDP voice relay's accept loop.
type voiceRunner struct {
	relay *voice.Relay
}

func (r *voiceRunner) Name() string { return "voice" }
func (r *voiceRunner) Run() error   { return r.relay.ListenAndServe() }
func (r *voiceRunner) Stop(error)   { r.relay.Close() }

// resourceHTTPRunner owns the fasthttp-backed resource service of
// spec §4.5, kept on its own address since fasthttp.Server has no
// http.Handler-compatible shape to share a listener with admin's
// net/http mux.
type resourceHTTPRunner struct {
	addr string
	srv  *resourcehttp.Server

	fastSrv  *fasthttp.Server
	listener net.Listener
}

func (r *resourceHTTPRunner) Name() string { return "resource-http" }

func (r *resourceHTTPRunner) Run() error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return err
	}
	r.listener = ln
	r.fastSrv = &fasthttp.Server{Handler: r.srv.Handler()}
	err = r.fastSrv.Serve(ln)
	if isClosed(err) {
		return nil
	}
	return err
}

func (r *resourceHTTPRunner) Stop(error) {
	if r.fastSrv != nil {
		_ = r.fastSrv.Shutdown()
	}
}

// adminHTTPRunner owns the cookie-authenticated net/http admin surface
// of spec §4.7/§4.12.
type adminHTTPRunner struct {
	addr string
	srv  *admin.Server

	httpSrv *http.Server
}

func (r *adminHTTPRunner) Name() string { return "admin-http" }

func (r *adminHTTPRunner) Run() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", r.srv)
	r.httpSrv = &http.Server{Addr: r.addr, Handler: mux}
	err := r.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (r *adminHTTPRunner) Stop(error) {
	if r.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.httpSrv.Shutdown(ctx)
	}
}

func isClosed(err error) bool {
	return err != nil && errors.Is(err, net.ErrClosed)
}
