package routes

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/shorturl/offline-agent/internal/push"
)

// RegisterPushRoutes 暴露推送、通知点击与窗口注册接口。
func RegisterPushRoutes(app *fiber.App, dispatcher *push.Dispatcher) {
	if app == nil || dispatcher == nil {
		return
	}

	app.Post("/-/push", func(c fiber.Ctx) error {
		n := dispatcher.HandlePush(append([]byte(nil), c.Body()...))
		return c.Status(fiber.StatusCreated).JSON(n)
	})

	app.Get("/-/notifications", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"notifications": dispatcher.Center().List()})
	})

	app.Post("/-/notifications/:id/click", func(c fiber.Ctx) error {
		result, err := dispatcher.HandleClick(c.Params("id"))
		if errors.Is(err, push.ErrNotificationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification_not_found"})
		}
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	app.Get("/-/clients", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"clients": dispatcher.Windows().MatchAll()})
	})

	app.Post("/-/clients", func(c fiber.Ctx) error {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(c.Body(), &req); err != nil || strings.TrimSpace(req.URL) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_url_required"})
		}
		return c.Status(fiber.StatusCreated).JSON(dispatcher.Windows().Register(req.URL))
	})

	app.Delete("/-/clients/:id", func(c fiber.Ctx) error {
		if !dispatcher.Windows().Unregister(c.Params("id")) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client_not_found"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
