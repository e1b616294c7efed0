package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/conversation"
	"github.com/veltrix/chatgate/pkg/store"
)

// AdminHandler inspects and purges the persisted admission state and
// conversation transcripts.
type AdminHandler struct {
	logger      *logrus.Logger
	counters    store.Store
	transcripts *conversation.TranscriptStore
}

func NewAdminHandler(
	logger *logrus.Logger,
	counters store.Store,
	transcripts *conversation.TranscriptStore,
) *AdminHandler {
	return &AdminHandler{
		logger:      logger,
		counters:    counters,
		transcripts: transcripts,
	}
}

func (h *AdminHandler) ListKeys(ctx *fiber.Ctx) error {
	keys, err := h.counters.Keys(ctx.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to enumerate keys")
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to enumerate keys"})
	}
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"keys": keys, "count": len(keys)})
}

// PurgeKeys deletes every counter or budget record whose key contains
// the match parameter. Used for per-user purges.
func (h *AdminHandler) PurgeKeys(ctx *fiber.Ctx) error {
	match := ctx.Query("match")
	if match == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "match parameter is required"})
	}

	deleted, err := store.PurgeMatching(ctx.Context(), h.counters, match)
	if err != nil {
		h.logger.WithError(err).WithField("match", match).Error("purge failed")
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "purge failed"})
	}

	h.logger.WithFields(logrus.Fields{"match": match, "deleted": deleted}).Info("purged records")
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"deleted": deleted})
}

func (h *AdminHandler) GetConversation(ctx *fiber.Ctx) error {
	userID := ctx.Params("user_id")
	messages := h.transcripts.History(ctx.Context(), userID)
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id":  userID,
		"messages": messages,
	})
}

// DeleteUser removes every trace of a user: counters, token budget and
// conversation transcript.
func (h *AdminHandler) DeleteUser(ctx *fiber.Ctx) error {
	userID := ctx.Params("user_id")

	deleted, err := store.PurgeMatching(ctx.Context(), h.counters, userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("failed to purge user counters")
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to purge user"})
	}
	if err := h.transcripts.Purge(ctx.Context(), userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("failed to purge user transcript")
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to purge user"})
	}

	h.logger.WithFields(logrus.Fields{"user_id": userID, "deleted": deleted}).Info("purged user state")
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"user_id": userID, "deleted_records": deleted})
}
