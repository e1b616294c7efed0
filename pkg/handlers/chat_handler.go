package handlers

import (
	"regexp"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/conversation"
	"github.com/veltrix/chatgate/pkg/provider"
	"github.com/veltrix/chatgate/pkg/ratelimit"
	"github.com/veltrix/chatgate/pkg/spam"
	"github.com/veltrix/chatgate/pkg/types"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// ipHeaders in order of preference before falling back to the socket.
var ipHeaders = []string{
	"X-Real-IP",
	"X-Forwarded-For",
	"True-Client-IP",
	"CF-Connecting-IP",
}

type ChatHandler struct {
	logger         *logrus.Logger
	classifier     *spam.Classifier
	gate           *ratelimit.Gate
	client         provider.Client
	transcripts    *conversation.TranscriptStore
	historyWindow  int
	maxPromptBytes int
}

func NewChatHandler(
	logger *logrus.Logger,
	classifier *spam.Classifier,
	gate *ratelimit.Gate,
	client provider.Client,
	transcripts *conversation.TranscriptStore,
	historyWindow int,
	maxPromptBytes int,
) *ChatHandler {
	return &ChatHandler{
		logger:         logger,
		classifier:     classifier,
		gate:           gate,
		client:         client,
		transcripts:    transcripts,
		historyWindow:  historyWindow,
		maxPromptBytes: maxPromptBytes,
	}
}

func (h *ChatHandler) Handle(ctx *fiber.Ctx) error {
	var req types.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusBadRequest,
			Code:       types.CodeInvalidInput,
			Message:    "invalid request body",
		})
	}

	if !userIDPattern.MatchString(req.UserID) {
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusBadRequest,
			Code:       types.CodeInvalidInput,
			Message:    "user_id must be 3-50 alphanumeric, dash or underscore characters",
		})
	}
	if req.Message == "" {
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusBadRequest,
			Code:       types.CodeInvalidInput,
			Message:    "message is required",
		})
	}
	if len(req.Message) > h.maxPromptBytes {
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusRequestEntityTooLarge,
			Code:       types.CodeInvalidInput,
			Message:    "message exceeds the maximum prompt size",
		})
	}

	clientIP := extractClientIP(ctx)

	// Cheap stateless check first, before touching any counter.
	score := h.classifier.Analyze(req.Message)
	if score.IsSpam {
		h.logger.WithFields(logrus.Fields{
			"user_id": req.UserID,
			"ip":      clientIP,
			"score":   score.Score,
			"reason":  score.Reason,
		}).Info("prompt rejected as spam")
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusTooManyRequests,
			Code:       types.CodeSpamDetected,
			Message:    "message flagged as spam: " + score.Reason,
		})
	}

	estimatedTokens := provider.EstimateTokens(req.Message)
	verdict := h.gate.Evaluate(ctx.Context(), req.UserID, clientIP, estimatedTokens)
	if !verdict.Allowed {
		h.logger.WithFields(logrus.Fields{
			"user_id":    req.UserID,
			"ip":         clientIP,
			"violations": verdict.Violations,
		}).Info("request rate limited")
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusTooManyRequests,
			Code:       types.CodeRateLimited,
			Message:    "rate limit exceeded",
			RetryAfter: verdict.RetryAfter,
		})
	}

	history := h.recentHistory(ctx, req.UserID)
	completion, err := h.client.Ask(ctx.Context(), req.Message, history)
	if err != nil {
		// Admission charged the estimate up front; the failed call must
		// not permanently consume it.
		h.gate.Budget().Refund(ctx.Context(), req.UserID, estimatedTokens)
		h.logger.WithError(err).WithField("user_id", req.UserID).Error("upstream generation failed")
		return respondError(ctx, &types.AdmissionError{
			StatusCode: fiber.StatusBadGateway,
			Code:       types.CodeUpstreamError,
			Message:    "generation failed",
		})
	}

	h.transcripts.Append(ctx.Context(), req.UserID,
		h.transcripts.NewMessage(conversation.RoleUser, req.Message),
		h.transcripts.NewMessage(conversation.RoleAssistant, completion.Response),
	)

	return ctx.Status(fiber.StatusOK).JSON(types.ChatResponse{
		RequestID: uuid.NewString(),
		Reply:     completion.Response,
		Model:     completion.Model,
		Usage:     completion.Usage,
	})
}

func (h *ChatHandler) recentHistory(ctx *fiber.Ctx, userID string) []provider.Message {
	messages := h.transcripts.History(ctx.Context(), userID)
	if len(messages) > h.historyWindow {
		messages = messages[len(messages)-h.historyWindow:]
	}

	history := make([]provider.Message, 0, len(messages))
	for _, message := range messages {
		history = append(history, provider.Message{Role: message.Role, Content: message.Content})
	}
	return history
}

func extractClientIP(ctx *fiber.Ctx) string {
	for _, header := range ipHeaders {
		if value := ctx.Get(header); value != "" {
			return value
		}
	}
	return ctx.IP()
}

func respondError(ctx *fiber.Ctx, admissionErr *types.AdmissionError) error {
	if admissionErr.RetryAfter > 0 {
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(admissionErr.RetryAfter))
	}
	return ctx.Status(admissionErr.StatusCode).JSON(admissionErr)
}
