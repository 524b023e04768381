package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"canvas-backend/internal/model"
)

// UserHandler 유저 핸들러
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler UserHandler 생성
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// SearchUsersResponse 유저 검색 응답
type SearchUsersResponse struct {
	Users []UserResponse `json:"users"`
	Total int64          `json:"total"`
}

// sanitizeString 검색어 정제
func sanitizeString(s string) string {
	replacer := strings.NewReplacer(
		"<", "", ">", "", "\"", "", "'", "",
		"%", "\\%", "_", "\\_",
	)
	return replacer.Replace(s)
}

// SearchUsers 유저 검색 (이름 또는 이메일, 멘션 자동완성용)
func (h *UserHandler) SearchUsers(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int64)

	// 검색어 가져오기
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "search query is required",
		})
	}

	// 최소 2글자 이상
	if len(query) < 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "search query must be at least 2 characters",
		})
	}

	query = sanitizeString(query)
	searchPattern := "%" + query + "%"

	var users []model.User
	var total int64

	// 이름 또는 이메일로 검색 (본인 제외, 최대 10명)
	result := h.db.Model(&model.User{}).
		Where("id != ?", userID).
		Where("name ILIKE ? OR email ILIKE ?", searchPattern, searchPattern).
		Count(&total)

	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to search users",
		})
	}

	result = h.db.
		Where("id != ?", userID).
		Where("name ILIKE ? OR email ILIKE ?", searchPattern, searchPattern).
		Limit(10).
		Find(&users)

	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to search users",
		})
	}

	// 응답 변환
	userResponses := make([]UserResponse, len(users))
	for i := range users {
		userResponses[i] = userToResponse(&users[i])
	}

	return c.JSON(SearchUsersResponse{
		Users: userResponses,
		Total: total,
	})
}
