package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dudk/pskrx"
	"github.com/dudk/pskrx/capture"
	"github.com/dudk/pskrx/config"
	"github.com/dudk/pskrx/dsp"
	"github.com/dudk/pskrx/log"
	"github.com/dudk/pskrx/metric"
	"github.com/dudk/pskrx/panel"
	"github.com/dudk/pskrx/pump"
	"github.com/dudk/pskrx/render"
	"github.com/dudk/pskrx/sink"
	"github.com/dudk/pskrx/wav"
)

const shutdownTimeout = 5 * time.Second

// receiver wires source, controller, panel and http server.
type receiver struct {
	log        log.Logger
	out        io.Writer
	ctrl       *pskrx.Controller
	panel      *panel.Panel
	source     pskrx.Pump
	closer     io.Closer
	bufferSize int
	refresh    time.Duration
	listener   net.Listener
	handler    http.Handler
}

func newReceiver(cfg *config.Config, out io.Writer) (*receiver, error) {
	logger := log.WithLevel(cfg.Logging.Level)
	m := metric.New()

	source, closer, inputRate, err := openSource(cfg)
	if err != nil {
		return nil, err
	}
	r := &receiver{
		log:        logger,
		out:        out,
		source:     source,
		closer:     closer,
		bufferSize: cfg.Source.BufferSize,
		refresh:    cfg.Display.Refresh,
	}

	sinkOpts := []sink.Option{sink.WithTTL(cfg.Sinks.TTL)}
	if cfg.Sinks.RTP {
		sinkOpts = append(sinkOpts, sink.WithRTP(cfg.Sinks.PayloadType))
	}
	r.ctrl = pskrx.New(dsp.Native{},
		pskrx.WithName("pskrx"),
		pskrx.WithLogger(logger),
		pskrx.WithMetric(m),
		pskrx.WithParams(cfg.Params()),
		pskrx.WithCapture(newCapture(cfg.Capture, m)),
		pskrx.WithSinkOptions(sinkOpts...),
	)
	if err := r.ctrl.Configure(inputRate); err != nil {
		r.close()
		return nil, err
	}
	if cfg.Sinks.Record != "" {
		if err := r.ctrl.AttachRecordingSink(cfg.Sinks.Record); err != nil {
			r.close()
			return nil, err
		}
	}
	if cfg.Sinks.Network != "" {
		host, port, err := cfg.NetworkAddr()
		if err == nil {
			err = r.ctrl.AttachNetworkSink(host, port)
		}
		if err != nil {
			r.close()
			return nil, err
		}
	}

	rendererOpts := []render.Option{
		render.WithScale(cfg.Display.Scale, cfg.Display.Scale),
		render.WithDotRadius(cfg.Display.DotRadius),
		render.WithMode(cfg.Demodulator.ModulationOrder),
	}
	if cfg.Display.Label {
		rendererOpts = append(rendererOpts, render.WithLabel())
	}
	renderer := render.New(render.NewImageBackend(), rendererOpts...)
	renderer.Resize(cfg.Display.Width, cfg.Display.Height)
	r.panel = panel.New(r.ctrl, renderer,
		panel.WithLogger(logger),
		panel.WithSymbols(cfg.Capture.Size),
	)

	mux := http.NewServeMux()
	mux.Handle("/", r.panel.Handler())
	if cfg.Server.Metrics {
		mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	r.handler = mux

	if r.listener, err = net.Listen("tcp", cfg.Server.Listen); err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

// openSource returns pump of configured source and its sample rate.
func openSource(cfg *config.Config) (pskrx.Pump, io.Closer, float64, error) {
	switch cfg.Source.Kind {
	case config.File:
		var opts []pump.Option
		if cfg.Source.Loop {
			opts = append(opts, pump.WithLoop())
		}
		p, err := pump.NewFile(cfg.Source.Path, opts...)
		if err != nil {
			return nil, nil, 0, err
		}
		return p, p, cfg.Source.InputRate, nil
	case config.Wav:
		p, err := wav.NewPump(cfg.Source.Path)
		if err != nil {
			return nil, nil, 0, err
		}
		return p, p, float64(p.SampleRate()), nil
	}
	sps := int(math.Round(cfg.Params().SamplesPerSymbol()))
	opts := []pump.Option{pump.WithNoise(cfg.Source.Noise)}
	if cfg.Source.Realtime {
		opts = append(opts, pump.WithRate(cfg.Source.InputRate))
	}
	return pump.NewGenerator(cfg.Demodulator.ModulationOrder, sps, opts...), nil, cfg.Source.InputRate, nil
}

func newCapture(cfg config.CaptureConfig, m *metric.Metric) capture.Buffer {
	if cfg.Mode == config.Gated {
		return capture.NewGated(cfg.Size, cfg.Period, capture.WithMetric(m))
	}
	return capture.NewRing(cfg.Size, capture.WithMetric(m))
}

// run serves the panel until context is done. Finished stream keeps the
// panel serving the last symbols.
func (r *receiver) run(ctx context.Context) error {
	server := &http.Server{
		Handler:           r.handler,
		ReadHeaderTimeout: shutdownTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(r.listener)
	}()
	fmt.Fprintf(r.out, "pskrx %v listening on %v\n", r.ctrl, r.listener.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	panelDone := make(chan struct{})
	go func() {
		defer close(panelDone)
		r.panel.Run(ctx, r.refresh)
	}()

	errc := r.ctrl.Run(r.source, r.bufferSize)
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- pskrx.Wait(errc)
	}()
	var err error
	select {
	case <-ctx.Done():
	case err = <-streamDone:
		if err == nil {
			r.log.Info("input stream is done")
			<-ctx.Done()
		}
	}
	cancel()
	<-panelDone

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	errs := []error{err, server.Shutdown(shutdownCtx)}
	if serr := <-serveErr; !errors.Is(serr, http.ErrServerClosed) {
		errs = append(errs, serr)
	}
	errs = append(errs, r.close())
	return errors.Join(errs...)
}

func (r *receiver) close() error {
	var errs []error
	if r.ctrl != nil {
		errs = append(errs, r.ctrl.Close())
	}
	if r.closer != nil {
		errs = append(errs, r.closer.Close())
	}
	return errors.Join(errs...)
}
