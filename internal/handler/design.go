package handler

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"canvas-backend/internal/config"
	"canvas-backend/internal/model"
)

var (
	errDesignNotFound = errors.New("design not found")
	errNoAccess       = errors.New("no access to design")
)

// DesignHandler 디자인 CRUD 핸들러
type DesignHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewDesignHandler DesignHandler 생성
func NewDesignHandler(db *gorm.DB, cfg *config.Config) *DesignHandler {
	return &DesignHandler{db: db, cfg: cfg}
}

// DesignResponse 디자인 응답
type DesignResponse struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	OwnerID         int64           `json:"ownerId"`
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	Elements        json.RawMessage `json:"elements"`
	Version         int64           `json:"version"`
	IsPublic        bool            `json:"isPublic"`
	ShareCode       string          `json:"shareCode"`
	CollaboratorIDs []int64         `json:"collaboratorIds"`
	LastSavedAt     *time.Time      `json:"lastSavedAt,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateDesignRequest 디자인 생성 요청
type CreateDesignRequest struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// UpdateDesignRequest is a sparse durable save. ExpectedVersion is the
// version the client based its edits on; a mismatch is a hard conflict,
// never a merge.
type UpdateDesignRequest struct {
	ExpectedVersion int64           `json:"expectedVersion"`
	Name            *string         `json:"name,omitempty"`
	Width           *float64        `json:"width,omitempty"`
	Height          *float64        `json:"height,omitempty"`
	Elements        json.RawMessage `json:"elements,omitempty"`
	IsPublic        *bool           `json:"isPublic,omitempty"`
}

// AddCollaboratorRequest 공동 작업자 추가 요청
type AddCollaboratorRequest struct {
	UserID int64  `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

func designToResponse(d *model.Design) DesignResponse {
	resp := DesignResponse{
		ID:              d.ID,
		Name:            d.Name,
		OwnerID:         d.OwnerID,
		Width:           d.Width,
		Height:          d.Height,
		Elements:        json.RawMessage(d.Elements),
		Version:         d.Version,
		IsPublic:        d.IsPublic,
		ShareCode:       d.ShareCode,
		CollaboratorIDs: []int64{},
		LastSavedAt:     d.LastSavedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if len(resp.Elements) == 0 {
		resp.Elements = json.RawMessage("[]")
	}
	for _, col := range d.Collaborators {
		resp.CollaboratorIDs = append(resp.CollaboratorIDs, col.UserID)
	}
	return resp
}

// requireDesignAccess checks that the user may read the design: owner,
// collaborator, or the design is public.
func requireDesignAccess(db *gorm.DB, designID, userID int64) error {
	var design model.Design
	if err := db.Select("id, owner_id, is_public").First(&design, "id = ?", designID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errDesignNotFound
		}
		return err
	}
	if design.OwnerID == userID || design.IsPublic {
		return nil
	}

	var count int64
	db.Model(&model.DesignCollaborator{}).
		Where("design_id = ? AND user_id = ?", designID, userID).
		Count(&count)
	if count == 0 {
		return errNoAccess
	}
	return nil
}

func designAccessError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errDesignNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "design not found", "code": ErrCodeNotFound})
	case errors.Is(err, errNoAccess):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "no access to design", "code": ErrCodeAuth})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
}

// CreateDesign 디자인 생성
func (h *DesignHandler) CreateDesign(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var req CreateDesignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		req.Name = "Untitled design"
	}
	if req.Width <= 0 {
		req.Width = h.cfg.Canvas.DefaultWidth
	}
	if req.Height <= 0 {
		req.Height = h.cfg.Canvas.DefaultHeight
	}

	design := model.Design{
		Name:      req.Name,
		OwnerID:   userID,
		Width:     req.Width,
		Height:    req.Height,
		Elements:  "[]",
		Version:   1,
		ShareCode: uuid.NewString(),
	}
	if err := h.db.Create(&design).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create design"})
	}

	return c.Status(fiber.StatusCreated).JSON(designToResponse(&design))
}

// GetMyDesigns 내 디자인 목록 (소유 + 공동 작업)
func (h *DesignHandler) GetMyDesigns(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	var designs []model.Design
	if err := h.db.Preload("Collaborators").
		Where("owner_id = ?", userID).
		Or("id IN (?)", h.db.Model(&model.DesignCollaborator{}).Select("design_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&designs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch designs"})
	}

	out := make([]DesignResponse, 0, len(designs))
	for i := range designs {
		out = append(out, designToResponse(&designs[i]))
	}
	return c.JSON(out)
}

// GetDesign 디자인 조회
func (h *DesignHandler) GetDesign(c *fiber.Ctx) error {
	designID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid design id"})
	}
	userID := c.Locals("userID").(int64)

	if err := requireDesignAccess(h.db, int64(designID), userID); err != nil {
		return designAccessError(c, err)
	}

	var design model.Design
	if err := h.db.Preload("Collaborators").First(&design, "id = ?", designID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "design not found", "code": ErrCodeNotFound})
	}

	return c.JSON(designToResponse(&design))
}

// UpdateDesign 디자인 저장 (낙관적 동시성)
// The UPDATE is guarded by `version = expectedVersion`; zero rows
// affected on an existing design means someone saved first. The stored
// row is never touched on conflict.
func (h *DesignHandler) UpdateDesign(c *fiber.Ctx) error {
	designID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid design id"})
	}
	userID := c.Locals("userID").(int64)

	if err := requireDesignAccess(h.db, int64(designID), userID); err != nil {
		return designAccessError(c, err)
	}

	var req UpdateDesignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ExpectedVersion <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expectedVersion is required",
			"code":  ErrCodeValidation,
		})
	}

	updates := map[string]interface{}{
		"version":       gorm.Expr("version + 1"),
		"last_saved_at": time.Now(),
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Width != nil {
		updates["width"] = *req.Width
	}
	if req.Height != nil {
		updates["height"] = *req.Height
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if len(req.Elements) > 0 {
		if !json.Valid(req.Elements) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "elements must be valid JSON",
				"code":  ErrCodeValidation,
			})
		}
		updates["elements"] = string(req.Elements)
	}

	res := h.db.Model(&model.Design{}).
		Where("id = ? AND version = ?", designID, req.ExpectedVersion).
		Updates(updates)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save design"})
	}
	if res.RowsAffected == 0 {
		// Stale version: hard rejection, the client reloads and retries.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "version conflict, reload the design",
			"code":  ErrCodeConflict,
		})
	}

	var design model.Design
	if err := h.db.Preload("Collaborators").First(&design, "id = ?", designID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload design"})
	}
	return c.JSON(designToResponse(&design))
}

// DeleteDesign 디자인 삭제 (소유자 전용)
func (h *DesignHandler) DeleteDesign(c *fiber.Ctx) error {
	designID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid design id"})
	}
	userID := c.Locals("userID").(int64)

	var design model.Design
	if err := h.db.First(&design, "id = ?", designID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "design not found", "code": ErrCodeNotFound})
	}
	if design.OwnerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the owner can delete a design"})
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("design_id = ?", designID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("design_id = ?", designID).Delete(&model.DesignCollaborator{}).Error; err != nil {
			return err
		}
		return tx.Delete(&design).Error
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete design"})
	}

	return c.JSON(fiber.Map{"message": "design deleted"})
}

// AddCollaborator 공동 작업자 추가 (소유자 전용)
func (h *DesignHandler) AddCollaborator(c *fiber.Ctx) error {
	designID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid design id"})
	}
	userID := c.Locals("userID").(int64)

	var design model.Design
	if err := h.db.First(&design, "id = ?", designID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "design not found", "code": ErrCodeNotFound})
	}
	if design.OwnerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the owner can add collaborators"})
	}

	var req AddCollaboratorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var target model.User
	switch {
	case req.UserID != 0:
		err = h.db.First(&target, "id = ?", req.UserID).Error
	case req.Email != "":
		err = h.db.First(&target, "email = ?", req.Email).Error
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId or email is required"})
	}
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found", "code": ErrCodeNotFound})
	}
	if target.ID == design.OwnerID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "owner is already a collaborator"})
	}

	collab := model.DesignCollaborator{DesignID: design.ID, UserID: target.ID}
	if err := h.db.Where(&collab).FirstOrCreate(&collab).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to add collaborator"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"design_id": design.ID,
		"user_id":   target.ID,
	})
}
