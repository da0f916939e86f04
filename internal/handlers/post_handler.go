package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	notifier       PostNotifier
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, notifier PostNotifier) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		notifier:       notifier,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.GET("/posts", h.GetPosts) // ?user_id= and ?item_type=lost|found narrow the listing
}

// CreatePost stores a new post and notifies every other user about it
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if !req.ItemComplete() {
		return echo.NewHTTPError(http.StatusBadRequest, "Item posts require item_type and item_name")
	}
	if req.Content == "" && len(req.ImageURLs) == 0 && !req.IsItemPost {
		return echo.NewHTTPError(http.StatusBadRequest, "Post must have content or images")
	}

	post := &models.Post{
		UserID:    userID,
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		PostType:  req.PostType(),
	}
	if req.IsItemPost {
		post.IsItemPost = true
		post.ItemType = req.ItemType
		post.ItemName = req.ItemName
		post.ItemDescription = req.ItemDescription
		post.FullName = req.FullName
		post.Address = req.Address
		post.MobileNumber = req.MobileNumber
	}

	ctx := c.Request().Context()
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return internalError("Failed to create post", err)
	}

	h.notifier.NotifyNewPost(ctx, post.ID.Hex(), userID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": post})
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid post ID")
	case errors.Is(err, repositories.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	case err != nil:
		return internalError("Failed to fetch post", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": post})
}

// GetPosts lists posts newest first
func (h *PostHandler) GetPosts(c echo.Context) error {
	filter := repositories.PostFilter{
		UserID:   c.QueryParam("user_id"),
		ItemType: c.QueryParam("item_type"),
	}
	if filter.ItemType != "" && filter.ItemType != models.ItemTypeLost && filter.ItemType != models.ItemTypeFound {
		return echo.NewHTTPError(http.StatusBadRequest, "item_type must be lost or found")
	}

	skip, _ := strconv.ParseInt(c.QueryParam("skip"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	posts, err := h.postRepository.ListPosts(c.Request().Context(), filter, skip, limit)
	if err != nil {
		return internalError("Failed to fetch posts", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": posts})
}
