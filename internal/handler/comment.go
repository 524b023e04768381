package handler

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"canvas-backend/internal/model"
)

// CommentHandler 코멘트 REST 핸들러
// The websocket path is the fast path; these routes are the fallback for
// clients without a live socket. Both land in the same store and both
// end in a room broadcast.
type CommentHandler struct {
	db  *gorm.DB
	hub *DesignHub
}

// NewCommentHandler CommentHandler 생성
func NewCommentHandler(db *gorm.DB, hub *DesignHub) *CommentHandler {
	return &CommentHandler{db: db, hub: hub}
}

// CommentResponse is the wire shape of one comment, shared by REST and
// the socket broadcast.
type CommentResponse struct {
	ID         int64           `json:"id"`
	DesignID   int64           `json:"designId"`
	AuthorID   int64           `json:"authorId"`
	AuthorName string          `json:"authorName"`
	Message    string          `json:"message"`
	Mentions   []int64         `json:"mentions"`
	Position   json.RawMessage `json:"position,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// CreateCommentRequest 코멘트 생성 요청
type CreateCommentRequest struct {
	Message  string          `json:"message"`
	Mentions []int64         `json:"mentions,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
}

func commentToResponse(c *model.Comment) CommentResponse {
	resp := CommentResponse{
		ID:         c.ID,
		DesignID:   c.DesignID,
		AuthorID:   c.AuthorID,
		AuthorName: c.Author.Name,
		Message:    c.Message,
		Mentions:   []int64{},
		CreatedAt:  c.CreatedAt,
	}
	if c.Mentions != "" {
		json.Unmarshal([]byte(c.Mentions), &resp.Mentions)
	}
	if c.Position != nil {
		resp.Position = json.RawMessage(*c.Position)
	}
	return resp
}

// GetComments 디자인 코멘트 목록 (생성순)
func (h *CommentHandler) GetComments(c *fiber.Ctx) error {
	designID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid design id"})
	}
	userID := c.Locals("userID").(int64)

	if err := requireDesignAccess(h.db, int64(designID), userID); err != nil {
		return designAccessError(c, err)
	}

	var comments []model.Comment
	if err := h.db.Preload("Author").
		Where("design_id = ?", designID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch comments"})
	}

	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, commentToResponse(&comments[i]))
	}
	return c.JSON(out)
}

// CreateComment 코멘트 생성 (REST fallback)
func (h *CommentHandler) CreateComment(c *fiber.Ctx) error {
	designID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid design id"})
	}
	userID := c.Locals("userID").(int64)
	userName, _ := c.Locals("name").(string)

	if err := requireDesignAccess(h.db, int64(designID), userID); err != nil {
		return designAccessError(c, err)
	}

	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	payload := CommentCreatePayload{
		Message:  req.Message,
		Mentions: req.Mentions,
		Position: req.Position,
	}
	comment, details := h.hub.createComment(int64(designID), userID, userName, &payload)
	if details != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid comment",
			"code":    ErrCodeValidation,
			"details": details,
		})
	}
	if comment == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save comment"})
	}

	// Same fan-out as the socket fast path.
	h.hub.BroadcastComment(int64(designID), *comment)

	return c.Status(fiber.StatusCreated).JSON(comment)
}
