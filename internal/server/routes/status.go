package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/shorturl/offline-agent/internal/agent"
	"github.com/shorturl/offline-agent/internal/version"
)

// RegisterStatusRoutes 暴露 /-/status 诊断接口，供排查当前缓存代与预缓存内容。
func RegisterStatusRoutes(app *fiber.App, a *agent.Agent) {
	if app == nil || a == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		payload, err := buildStatus(c, a)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_unavailable"})
		}
		return c.JSON(payload)
	})
}

type statusPayload struct {
	Version    string   `json:"version"`
	State      string   `json:"state"`
	Generation string   `json:"generation"`
	Buckets    []string `json:"buckets"`
	Manifest   []string `json:"manifest"`
	Entries    []string `json:"entries"`
}

func buildStatus(c fiber.Ctx, a *agent.Agent) (statusPayload, error) {
	ctx := c.Context()
	store := a.Store()

	names, err := store.Names(ctx)
	if err != nil {
		return statusPayload{}, err
	}
	payload := statusPayload{
		Version:    version.Full(),
		State:      a.State().String(),
		Generation: a.Generation(),
		Buckets:    names,
		Manifest:   a.Manifest(),
		Entries:    []string{},
	}
	if payload.Buckets == nil {
		payload.Buckets = []string{}
	}

	exists, err := store.Has(ctx, a.Generation())
	if err != nil || !exists {
		return payload, err
	}
	bucket, err := store.Open(ctx, a.Generation())
	if err != nil {
		return payload, err
	}
	keys, err := bucket.Keys(ctx)
	if err != nil {
		return payload, err
	}
	for _, key := range keys {
		payload.Entries = append(payload.Entries, key.String())
	}
	return payload, nil
}
