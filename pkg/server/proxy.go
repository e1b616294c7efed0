package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/config"
	"github.com/veltrix/chatgate/pkg/handlers"
)

const HealthPath = "/health"

type (
	ProxyServerDI struct {
		Config           *config.Config
		Logger           *logrus.Logger
		HandlerTransport handlers.HandlerTransport
	}
	ProxyServer struct {
		*BaseServer
		handlerTransport handlers.HandlerTransport
	}
)

func NewProxyServer(di ProxyServerDI) *ProxyServer {
	return &ProxyServer{
		BaseServer:       NewBaseServer(di.Config, di.Logger),
		handlerTransport: di.HandlerTransport,
	}
}

func (s *ProxyServer) Run() error {
	s.router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	s.router.Post("/v1/chat", s.handlerTransport.ChatHandler.Handle)

	addr := fmt.Sprintf(":%d", s.config.Server.ProxyPort)
	s.logger.WithField("addr", addr).Info("Starting proxy server")
	return s.router.Listen(addr)
}
