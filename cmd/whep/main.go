package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shynome/whep"
	"github.com/shynome/whep/internal/config"
	"github.com/shynome/whep/peer"
	"github.com/spf13/pflag"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics")
			}
		}()
	}

	api := try.To1(peer.NewAPI(peer.WithUDPPort(cfg.ICEPort)))
	defer api.Close()

	var iceServers []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	conn := try.To1(api.NewConn(
		webrtc.Configuration{ICEServers: iceServers},
		webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio,
	))
	conn.PeerConnection().OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("kind", track.Kind().String()).Str("codec", track.Codec().MimeType).Msg("track")
		buf := make([]byte, 1500)
		var n int
		for {
			read, _, err := track.Read(buf)
			if err != nil {
				log.Debug().Err(err).Str("kind", track.Kind().String()).Int("bytes", n).Msg("track ended")
				return
			}
			n += read
		}
	})

	client := whep.New(whep.WithMetrics(whep.NewMetrics(prometheus.DefaultRegisterer)))
	client.AddListener(whep.EventAny, func(ev whep.Event) {
		level := zerolog.InfoLevel
		if ev.Name == whep.EventError {
			level = zerolog.WarnLevel
		}
		e := log.WithLevel(level).Str("event", ev.Name)
		switch ev.Name {
		case whep.EventState:
			e = e.Str("state", ev.State.String())
		case whep.EventConnectionState:
			e = e.Str("connection", ev.ConnectionState.String())
		case whep.EventError:
			e = e.Err(ev.Err)
		default:
			e = e.Str("data", ev.Data)
		}
		e.Send()
		if ev.Name == whep.EventConnectionState && ev.ConnectionState == webrtc.PeerConnectionStateFailed {
			stop()
		}
	})

	if err := client.View(ctx, conn, cfg.Endpoint, cfg.Token); err != nil {
		log.Error().Err(err).Str("endpoint", cfg.Endpoint).Msg("view")
		client.Stop(context.Background())
		os.Exit(1)
	}
	log.Info().Str("resource", client.ResourceURL().String()).Msg("viewing")

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Stop(sctx); err != nil {
		log.Warn().Err(err).Msg("stop")
	}
}
