package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/inkstonehq/inkstone/backend/internal/auth"
	"github.com/inkstonehq/inkstone/backend/internal/journal"
	"github.com/inkstonehq/inkstone/backend/internal/profiles"
	"github.com/inkstonehq/inkstone/backend/internal/shell"
	"go.uber.org/zap"
)

const userIDContextKey = "inkstone_user_id"

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingJournalService = errors.New("journal service dependency required")
	errMissingConsolidator   = errors.New("consolidator dependency required")
	errMissingProfiles       = errors.New("profiles service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// GoogleVerifier validates Google ID tokens during the auth exchange.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// BackendTokenManager issues and validates backend bearer tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// IdentityResolver maps verified Google claims to a canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.GoogleClaims) (string, error)
}

// ProfileStore reads and updates the per-user profile row.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (profiles.Profile, error)
	Update(ctx context.Context, userID string, input profiles.UpdateInput) (profiles.Profile, error)
}

// ShellService backs the shell screen and the extraction flow.
type ShellService interface {
	Overview(ctx context.Context, userID string) (shell.Overview, error)
	CreateCategory(ctx context.Context, userID, name, description, iconName string) (shell.Category, error)
	ExtractFromNotes(ctx context.Context, userID string) (int, error)
}

// Dependencies wires the HTTP layer to the services behind it.
type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   BackendTokenManager
	Identity       IdentityResolver
	Profiles       ProfileStore
	Journal        *journal.Service
	Consolidator   *journal.Consolidator
	Shell          ShellService
	Clock          journal.DayClock
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Identity == nil || deps.Profiles == nil {
		return nil, errMissingProfiles
	}
	if deps.Journal == nil {
		return nil, errMissingJournalService
	}
	if deps.Consolidator == nil {
		return nil, errMissingConsolidator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:     deps.GoogleVerifier,
		tokens:       deps.TokenManager,
		identity:     deps.Identity,
		profiles:     deps.Profiles,
		journal:      deps.Journal,
		consolidator: deps.Consolidator,
		shell:        deps.Shell,
		clock:        deps.Clock,
		logger:       logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/notes", handler.handleListNotes)
	protected.POST("/notes", handler.handleCreateNote)
	protected.PATCH("/notes/:id", handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)
	protected.GET("/interview/questions", handler.handleInterviewQuestions)
	protected.POST("/interview/answers", handler.handleSubmitAnswers)
	protected.GET("/diary/pages", handler.handleListPages)
	protected.GET("/diary/pages/:date", handler.handleGetPage)
	protected.POST("/diary/consolidate", handler.handleConsolidate)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)
	protected.GET("/shell", handler.handleShellOverview)
	protected.POST("/shell/categories", handler.handleCreateShellCategory)
	protected.POST("/shell/extract", handler.handleShellExtract)

	return router, nil
}

type httpHandler struct {
	verifier     GoogleVerifier
	tokens       BackendTokenManager
	identity     IdentityResolver
	profiles     ProfileStore
	journal      *journal.Service
	consolidator *journal.Consolidator
	shell        ShellService
	clock        journal.DayClock
	logger       *zap.Logger
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identity.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity_resolution_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) requireUser(c *gin.Context) (journal.UserID, bool) {
	userID, err := journal.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

// resolveDate parses an optional date parameter, defaulting to today in the
// configured calendar basis.
func (h *httpHandler) resolveDate(raw string) (journal.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return h.clock.Today(), nil
	}
	return journal.NewDate(raw)
}

type notePayload struct {
	ID               string `json:"id"`
	Content          string `json:"content"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func toNotePayload(note journal.Note) notePayload {
	return notePayload{
		ID:               note.ID,
		Content:          note.Content,
		CreatedAtSeconds: note.CreatedAtSeconds,
		UpdatedAtSeconds: note.UpdatedAtSeconds,
	}
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	date, err := h.resolveDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	}

	notes, err := h.journal.ListNotesForDay(c.Request.Context(), userID, date)
	if err != nil {
		h.logger.Error("failed to list notes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	payload := make([]notePayload, 0, len(notes))
	for _, note := range notes {
		payload = append(payload, toNotePayload(note))
	}
	c.JSON(http.StatusOK, gin.H{"date": date.String(), "notes": payload})
}

type createNotePayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var request createNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.journal.CreateNote(c.Request.Context(), userID, request.Content)
	if err != nil {
		if errors.Is(err, journal.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_content"})
			return
		}
		h.logger.Error("failed to create note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, toNotePayload(note))
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var request createNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.journal.UpdateNote(c.Request.Context(), userID, c.Param("id"), request.Content)
	if err != nil {
		var serviceErr *journal.ServiceError
		switch {
		case errors.Is(err, journal.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_content"})
		case errors.As(err, &serviceErr) && strings.HasSuffix(serviceErr.Code(), ".not_found"):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		default:
			h.logger.Error("failed to update note", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		}
		return
	}
	c.JSON(http.StatusOK, toNotePayload(note))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if err := h.journal.DeleteNote(c.Request.Context(), userID, c.Param("id")); err != nil {
		var serviceErr *journal.ServiceError
		if errors.As(err, &serviceErr) && strings.HasSuffix(serviceErr.Code(), ".not_found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to delete note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleInterviewQuestions(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	kind := strings.ToLower(strings.TrimSpace(c.DefaultQuery("kind", "base")))
	switch kind {
	case "base":
		c.JSON(http.StatusOK, gin.H{"kind": "base", "questions": journal.BaseQuestions})
	case "ai":
		date, err := h.resolveDate(c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
			return
		}
		questions, err := h.journal.QuestionsForDay(c.Request.Context(), userID, date)
		if err != nil {
			h.logger.Error("failed to generate questions", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": "ai", "questions": questions})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_kind"})
	}
}

type submitAnswersPayload struct {
	Answers []answerPayload `json:"answers"`
}

type answerPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Kind     string `json:"kind"`
}

func (h *httpHandler) handleSubmitAnswers(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var request submitAnswersPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Answers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	inputs := make([]journal.AnswerInput, 0, len(request.Answers))
	for _, answer := range request.Answers {
		kind, err := journal.ParseAnswerKind(answer.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_kind"})
			return
		}
		inputs = append(inputs, journal.AnswerInput{
			Question: answer.Question,
			Answer:   answer.Answer,
			Kind:     kind,
		})
	}

	saved, err := h.journal.SubmitAnswers(c.Request.Context(), userID, inputs)
	if err != nil {
		h.logger.Error("failed to submit answers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

type pagePayload struct {
	ID               string `json:"id"`
	Date             string `json:"date"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	WordCount        int    `json:"word_count"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func toPagePayload(page journal.DiaryPage) pagePayload {
	return pagePayload{
		ID:               page.PageID,
		Date:             page.Date,
		Title:            page.Title,
		Content:          page.Content,
		WordCount:        page.WordCount,
		CreatedAtSeconds: page.CreatedAtSeconds,
		UpdatedAtSeconds: page.UpdatedAtSeconds,
	}
}

func (h *httpHandler) handleListPages(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	pages, err := h.journal.ListPages(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list diary pages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	payload := make([]pagePayload, 0, len(pages))
	for _, page := range pages {
		payload = append(payload, toPagePayload(page))
	}
	c.JSON(http.StatusOK, gin.H{"pages": payload})
}

func (h *httpHandler) handleGetPage(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	date, err := journal.NewDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	}
	page, err := h.journal.GetPage(c.Request.Context(), userID, date)
	if err != nil {
		var serviceErr *journal.ServiceError
		if errors.As(err, &serviceErr) && strings.HasSuffix(serviceErr.Code(), ".not_found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to fetch diary page", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed"})
		return
	}
	c.JSON(http.StatusOK, toPagePayload(page))
}

type consolidatePayload struct {
	Date string `json:"date"`
}

func (h *httpHandler) handleConsolidate(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var request consolidatePayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	date, err := h.resolveDate(request.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return
	}

	result, err := h.consolidator.ConsolidateDay(c.Request.Context(), userID, date)
	if err != nil {
		switch {
		case errors.Is(err, journal.ErrNoContent):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_content", "message": "nothing to consolidate for " + date.String()})
		case errors.Is(err, journal.ErrGenerationFailed):
			h.logger.Error("consolidation generation failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "message": err.Error()})
		case errors.Is(err, journal.ErrPersistenceFailed):
			h.logger.Error("consolidation persistence failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence_failed", "message": err.Error()})
		default:
			h.logger.Error("consolidation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "consolidation_failed", "message": err.Error()})
		}
		return
	}

	response := gin.H{"page": toPagePayload(result.Page)}
	if result.CleanupErr != nil {
		h.logger.Warn("consolidation cleanup pending", zap.Error(result.CleanupErr))
		response["cleanup"] = "pending"
	}
	c.JSON(http.StatusOK, response)
}

type profilePayload struct {
	FullName            string `json:"full_name"`
	Bio                 string `json:"bio"`
	AIExtractionEnabled bool   `json:"ai_extraction_enabled"`
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), userID.String())
	if err != nil {
		h.logger.Error("failed to fetch profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed"})
		return
	}
	c.JSON(http.StatusOK, profilePayload{
		FullName:            profile.FullName,
		Bio:                 profile.Bio,
		AIExtractionEnabled: profile.AIExtractionEnabled,
	})
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var request profilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), userID.String(), profiles.UpdateInput{
		FullName:            request.FullName,
		Bio:                 request.Bio,
		AIExtractionEnabled: request.AIExtractionEnabled,
	})
	if err != nil {
		h.logger.Error("failed to update profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, profilePayload{
		FullName:            profile.FullName,
		Bio:                 profile.Bio,
		AIExtractionEnabled: profile.AIExtractionEnabled,
	})
}

type shellItemPayload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type shellCategoryPayload struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IconName    string `json:"icon_name"`
}

func (h *httpHandler) handleShellOverview(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if h.shell == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "shell_disabled"})
		return
	}
	overview, err := h.shell.Overview(c.Request.Context(), userID.String())
	if err != nil {
		h.logger.Error("failed to load shell overview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed"})
		return
	}

	items := make([]shellItemPayload, 0, len(overview.Items))
	for _, item := range overview.Items {
		items = append(items, shellItemPayload{
			ID:          item.ID,
			Category:    item.Category,
			Title:       item.Title,
			Description: item.Description,
		})
	}
	categories := make([]shellCategoryPayload, 0, len(overview.Categories))
	for _, category := range overview.Categories {
		categories = append(categories, shellCategoryPayload{
			ID:          category.ID,
			Name:        category.Name,
			Description: category.Description,
			IconName:    category.IconName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "categories": categories})
}

type createCategoryPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IconName    string `json:"icon_name"`
}

func (h *httpHandler) handleCreateShellCategory(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if h.shell == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "shell_disabled"})
		return
	}
	var request createCategoryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	category, err := h.shell.CreateCategory(c.Request.Context(), userID.String(), request.Name, request.Description, request.IconName)
	if err != nil {
		if errors.Is(err, shell.ErrInvalidCategory) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_category"})
			return
		}
		h.logger.Error("failed to create shell category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, shellCategoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		IconName:    category.IconName,
	})
}

func (h *httpHandler) handleShellExtract(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	if h.shell == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "shell_disabled"})
		return
	}
	count, err := h.shell.ExtractFromNotes(c.Request.Context(), userID.String())
	if err != nil {
		switch {
		case errors.Is(err, shell.ErrExtractionDisabled):
			c.JSON(http.StatusForbidden, gin.H{"error": "extraction_disabled"})
		case errors.Is(err, shell.ErrNoNotes):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_notes"})
		default:
			h.logger.Error("shell extraction failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "extraction_failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
