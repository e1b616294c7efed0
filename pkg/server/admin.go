package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/config"
	"github.com/veltrix/chatgate/pkg/handlers"
	"github.com/veltrix/chatgate/pkg/middleware"
)

type (
	AdminServerDI struct {
		Config              *config.Config
		Logger              *logrus.Logger
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
	}
	AdminServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

func NewAdminServer(di AdminServerDI) *AdminServer {
	return &AdminServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
}

func (s *AdminServer) Run() error {
	s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Server.AdminPort)
	s.logger.WithField("addr", addr).Info("Starting admin server")
	return s.router.Listen(addr)
}

func (s *AdminServer) setupRoutes() {
	admin := s.router.Group("/admin", s.middlewareTransport.AdminAuthMiddleware.Middleware())
	{
		admin.Get("/keys", s.handlerTransport.AdminHandler.ListKeys)
		admin.Delete("/keys", s.handlerTransport.AdminHandler.PurgeKeys)
		admin.Get("/conversations/:user_id", s.handlerTransport.AdminHandler.GetConversation)
		admin.Delete("/users/:user_id", s.handlerTransport.AdminHandler.DeleteUser)
	}

	s.router.Get("/__/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
