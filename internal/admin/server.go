package admin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/karlseguin/jsonwriter"
	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
	"github.com/rtcbridge/rtcbridge/internal/sessions"
	"github.com/rtcbridge/rtcbridge/internal/types"
	"github.com/rtcbridge/rtcbridge/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const jsonContentType = "application/json"

// Server exposes the status/control surface of the bridge: limiter state,
// live sessions and subject clearing.
type Server interface {
	types.Initializer

	AcceptConnections() error
}

func NewServer(config conf.Config, coordinator *limiting.Coordinator, manager *sessions.Manager) Server {
	return &server{
		config:      config,
		coordinator: coordinator,
		manager:     manager,
	}
}

type server struct {
	config      conf.Config
	coordinator *limiting.Coordinator
	manager     *sessions.Manager
}

func (s *server) Init() error {
	return nil
}

func (s *server) AcceptConnections() error {
	port := s.config.AdminPort()
	address := fmt.Sprintf(":%d", port)
	router := s.buildRouter()

	h2s := &http2.Server{}
	server := &http.Server{
		Addr:    address,
		Handler: h2c.NewHandler(router, h2s),
	}

	if err := http2.ConfigureServer(server, h2s); err != nil {
		return err
	}

	c := make(chan bool, 1)
	go func() {
		c <- true
		if err := server.ListenAndServe(); err != nil {
			log.Fatal().Err(err)
		}
	}()

	<-c
	log.Info().Msgf("Admin server listening on port %d", port)
	return nil
}

func (s *server) buildRouter() *httprouter.Router {
	router := httprouter.New()
	router.GET(conf.StatusUrl, utils.ToHandle(s.getStatus))
	router.GET(conf.BlockedKeysUrl, utils.ToHandle(s.getBlockedKeys))
	router.GET(conf.SessionsUrl, utils.ToHandle(s.getSessions))
	router.POST(conf.ClearSubjectUrl, utils.ToPostHandle(s.postClearSubject))
	return router
}

func (s *server) getStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) error {
	w.Header().Set("Content-Type", jsonContentType)
	writer := jsonwriter.New(w)
	writer.RootObject(func() {
		writer.KeyValue("status", "OK")
		writer.KeyValue("overloaded", s.coordinator.IsOverloaded())
	})
	return nil
}

func (s *server) getBlockedKeys(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) error {
	keys := s.coordinator.BlockedKeys()

	w.Header().Set("Content-Type", jsonContentType)
	writer := jsonwriter.New(w)
	writer.RootObject(func() {
		writer.Array("blocked", func() {
			for _, key := range keys {
				writer.ArrayObject(func() {
					writer.KeyValue("subject", key.Subject)
					writer.KeyValue("operation", string(key.Operation))
				})
			}
		})
	})
	return nil
}

func (s *server) getSessions(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) error {
	list := s.manager.Sessions()

	w.Header().Set("Content-Type", jsonContentType)
	writer := jsonwriter.New(w)
	writer.RootObject(func() {
		writer.Array("sessions", func() {
			for _, info := range list {
				writer.ArrayObject(func() {
					writer.KeyValue("subject", info.Subject)
					writer.KeyValue("kind", info.Kind)
					writer.KeyValue("state", info.State)
				})
			}
		})
	})
	return nil
}

func (s *server) postClearSubject(_ http.ResponseWriter, _ *http.Request, ps httprouter.Params) error {
	subject := strings.TrimSpace(ps.ByName("subject"))
	if subject == "" {
		return types.NewHttpError(http.StatusBadRequest, "Invalid subject")
	}

	s.coordinator.ClearSubject(subject)
	return nil
}
