package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/services"
)

type MessageHandler struct {
	svc *services.ChatService
}

func NewMessageHandler(svc *services.ChatService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type sendMessageReq struct {
	Message string `json:"message"`
}

// Send persists a message to the recipient named in the path. The sender gets
// a success once the message is stored; live delivery to the recipient is
// best effort and invisible here.
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	senderID := c.Locals(auth.LocalsUserID).(string)
	recipientID := c.Params("id")

	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	m, err := h.svc.SendMessage(c.Context(), senderID, recipientID, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) || errors.Is(err, services.ErrMessageTooLong) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Message sent successfully.",
		"data":    m,
	})
}

// History returns all messages between the caller and the peer in the path.
func (h *MessageHandler) History(c *fiber.Ctx) error {
	userID := c.Locals(auth.LocalsUserID).(string)
	peerID := c.Params("id")

	msgs, err := h.svc.GetMessages(c.Context(), userID, peerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Messages retrieved successfully.",
		"data":    msgs,
	})
}
