package app

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lemmaiot-tech/neka/internal/ai"
	"github.com/lemmaiot-tech/neka/internal/auth"
	"github.com/lemmaiot-tech/neka/internal/authpw"
	"github.com/lemmaiot-tech/neka/internal/config"
	"github.com/lemmaiot-tech/neka/internal/lifecycle"
	"github.com/lemmaiot-tech/neka/internal/store"
	"github.com/lemmaiot-tech/neka/internal/subdomain"
	"github.com/lemmaiot-tech/neka/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	IsAdmin      bool
	JTI          string
	ExpiresAt    time.Time
}

// CreateRequestInput carries a new hosting request as submitted by the form.
type CreateRequestInput struct {
	Name                        string `json:"name"`
	Email                       string `json:"email"`
	Whatsapp                    string `json:"whatsapp"`
	ProjectName                 string `json:"projectName"`
	ProjectType                 string `json:"projectType"`
	OtherProjectTypeDescription string `json:"otherProjectTypeDescription"`
	Subdomain                   string `json:"subdomain"`
	HasProjectFiles             bool   `json:"hasProjectFiles"`
	ProjectLink                 string `json:"projectLink"`
	NewProjectDescription       string `json:"newProjectDescription"`
}

// UpdateDetailsInput is the slice of a request an admin may edit in place.
type UpdateDetailsInput struct {
	ProjectName string `json:"projectName"`
	Subdomain   string `json:"subdomain"`
	ProjectType string `json:"projectType"`
}

var allowedProjectTypes = map[string]struct{}{
	"POS & Inventory System":         {},
	"Local Marketplace/Shop":         {},
	"Appointment/Booking System":     {},
	"Food/Product Delivery Platform": {},
	"Business Directory/Listing":     {},
	"Payment Gateway Integration":    {},
	"Logistics & Tracking System":    {},
	"Online Learning Platform":       {},
	"Static Website/Blogs/Pages":     {},
	"Other":                          {},
}

type dataStore interface {
	CreateRequest(context.Context, store.Request) error
	GetRequest(context.Context, string) (store.Request, error)
	ListRequestsByOwner(context.Context, string) ([]store.Request, error)
	ListRequests(context.Context) ([]store.Request, error)
	SearchRequests(context.Context, string, int) ([]store.Request, error)
	SubdomainExists(context.Context, string) (bool, error)
	UpdateRequestStatus(context.Context, string, string) error
	UpdateRequestDetails(context.Context, string, store.RequestDetails) error
	UpdateRequestProjectLink(context.Context, string, string) error
	MarkViewed(context.Context, string, time.Time) error
	AppendComment(context.Context, string, store.Comment, string) error
	ListComments(context.Context, string) ([]store.Comment, error)
	Ping(ctx context.Context) error
}

// SessionStore holds refresh tokens. Redis when configured, Postgres
// otherwise; see internal/session.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]store.Request, error)
	IndexRequest(request store.Request)
}

type fileStore interface {
	Upload(ctx context.Context, requestID, filename, contentType string, reader io.Reader, size int64) (string, error)
	DownloadURL(ctx context.Context, requestID, filename string, expiry time.Duration) (string, error)
}

type mailer interface {
	IsConfigured() bool
	SendStatusChanged(to, projectName, status string) error
	SendNewComment(to, projectName, author string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  SessionStore
	authpw    *authpw.Service
	ai        *ai.Gateway
	search    searcher
	files     fileStore
	mailer    mailer
	allocator *subdomain.Allocator
	admins    map[string]struct{}
}

func New(cfg config.Config, dataStore dataStore, sessions SessionStore, authService *authpw.Service) *Service {
	admins := make(map[string]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		authpw:    authService,
		allocator: subdomain.NewAllocator(dataStore),
		admins:    admins,
	}
}

func (s *Service) AttachAI(gateway *ai.Gateway) { s.ai = gateway }
func (s *Service) AttachSearch(search searcher) { s.search = search }
func (s *Service) AttachFiles(files fileStore)  { s.files = files }
func (s *Service) AttachMailer(m mailer)        { s.mailer = m }

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) isAdmin(userID string) bool {
	_, ok := s.admins[userID]
	return ok
}

// Sessions

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if errors.Is(err, authpw.ErrEmailExists) {
		return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
	}
	if err != nil {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		IsAdmin:      s.isAdmin(user.ID),
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		IsAdmin:   s.isAdmin(claims.Sub),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Subdomains

func (s *Service) CheckSubdomain(ctx context.Context, label string) (map[string]any, error) {
	normalized := subdomain.Normalize(label)
	availability, err := s.allocator.Check(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"subdomain":    normalized,
		"availability": string(availability),
		"fullDomain":   normalized + "." + s.cfg.BaseDomain,
	}, nil
}

// Requests

func (s *Service) CreateRequest(ctx context.Context, session Session, input CreateRequestInput) (map[string]any, error) {
	input.Subdomain = subdomain.Normalize(input.Subdomain)
	if details := validateCreate(input); len(details) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request", details)
	}

	availability, err := s.allocator.Check(ctx, input.Subdomain)
	if err != nil {
		return nil, err
	}
	if availability != subdomain.Available {
		return nil, domainError(http.StatusConflict, "SUBDOMAIN_UNAVAILABLE", "Subdomain is not available", map[string]any{
			"availability": string(availability),
		})
	}

	request := store.Request{
		ID:                          util.NewID("req"),
		UserID:                      session.UserID,
		Name:                        strings.TrimSpace(input.Name),
		Email:                       strings.TrimSpace(input.Email),
		Whatsapp:                    strings.TrimSpace(input.Whatsapp),
		ProjectName:                 strings.TrimSpace(input.ProjectName),
		ProjectType:                 input.ProjectType,
		OtherProjectTypeDescription: strings.TrimSpace(input.OtherProjectTypeDescription),
		Subdomain:                   input.Subdomain,
		HasProjectFiles:             input.HasProjectFiles,
		ProjectLink:                 strings.TrimSpace(input.ProjectLink),
		NewProjectDescription:       strings.TrimSpace(input.NewProjectDescription),
		Status:                      string(lifecycle.Initial),
	}
	if err := s.store.CreateRequest(ctx, request); err != nil {
		if errors.Is(err, store.ErrSubdomainTaken) {
			return nil, domainError(http.StatusConflict, "SUBDOMAIN_UNAVAILABLE", "Subdomain is not available", map[string]any{
				"availability": string(subdomain.Taken),
			})
		}
		return nil, err
	}

	created, err := s.store.GetRequest(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	s.indexRequest(created)
	return requestPayload(created, true), nil
}

func validateCreate(input CreateRequestInput) map[string]string {
	details := map[string]string{}
	if len(strings.TrimSpace(input.Name)) < 2 {
		details["name"] = "name must be at least 2 characters"
	}
	if !strings.Contains(input.Email, "@") {
		details["email"] = "a valid email is required"
	}
	if len(strings.TrimSpace(input.Whatsapp)) < 10 {
		details["whatsapp"] = "whatsapp number must be at least 10 characters"
	}
	if len(strings.TrimSpace(input.ProjectName)) < 2 {
		details["projectName"] = "project name must be at least 2 characters"
	}
	if _, ok := allowedProjectTypes[input.ProjectType]; !ok {
		details["projectType"] = "unknown project type"
	}
	if input.ProjectType == "Other" && len(strings.TrimSpace(input.OtherProjectTypeDescription)) < 10 {
		details["otherProjectTypeDescription"] = "please describe the project type in at least 10 characters"
	}
	if len(input.Subdomain) < subdomain.MinLength {
		details["subdomain"] = "subdomain must be at least 3 characters"
	}
	if input.HasProjectFiles {
		if strings.TrimSpace(input.ProjectLink) == "" {
			details["projectLink"] = "a link to the project files is required"
		}
	} else if len(strings.TrimSpace(input.NewProjectDescription)) < 20 {
		details["newProjectDescription"] = "please describe the new project in at least 20 characters"
	}
	return details
}

// HasUnreadUpdate reports whether the request changed since the owner last
// opened it. A request never opened counts as unread.
func HasUnreadUpdate(request store.Request) bool {
	if request.UpdatedAt.IsZero() {
		return false
	}
	if request.LastViewedByClient == nil {
		return true
	}
	return request.UpdatedAt.After(*request.LastViewedByClient)
}

func (s *Service) GetRequest(ctx context.Context, session Session, requestID string) (map[string]any, error) {
	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != session.UserID && !session.IsAdmin {
		// A permission miss is indistinguishable from a missing id.
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}

	comments, err := s.store.ListComments(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unread := HasUnreadUpdate(request)
	if request.UserID == session.UserID && unread {
		if err := s.store.MarkViewed(ctx, requestID, time.Now()); err != nil {
			log.Printf(`{"event":"mark_viewed_failed","request_id":"%s","error":"%s"}`, requestID, err)
		}
	}

	payload := requestPayload(request, true)
	payload["hasUnreadUpdate"] = unread
	payload["comments"] = commentPayloads(comments)
	return payload, nil
}

func (s *Service) ListMine(ctx context.Context, session Session) ([]map[string]any, error) {
	requests, err := s.store.ListRequestsByOwner(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		items = append(items, requestPayload(request, true))
	}
	return items, nil
}

func (s *Service) ListAll(ctx context.Context, session Session, query string, limit int) ([]map[string]any, error) {
	if !session.IsAdmin {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var requests []store.Request
	var err error
	switch {
	case strings.TrimSpace(query) == "":
		requests, err = s.store.ListRequests(ctx)
	case s.search != nil:
		requests, err = s.search.Search(ctx, query, limit)
	default:
		requests, err = s.store.SearchRequests(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		items = append(items, requestPayload(request, false))
	}
	return items, nil
}

func (s *Service) SetStatus(ctx context.Context, session Session, requestID, rawStatus string) (map[string]any, error) {
	if !session.IsAdmin {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	status, err := lifecycle.Parse(rawStatus)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRequestStatus(ctx, requestID, string(status)); err != nil {
		return nil, err
	}

	s.notifyStatusChanged(request, string(status))

	updated, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.indexRequest(updated)
	return requestPayload(updated, false), nil
}

func (s *Service) UpdateDetails(ctx context.Context, session Session, requestID string, input UpdateDetailsInput) (map[string]any, error) {
	if !session.IsAdmin {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	details := map[string]string{}
	if len(strings.TrimSpace(input.ProjectName)) < 2 {
		details["projectName"] = "project name must be at least 2 characters"
	}
	if _, ok := allowedProjectTypes[input.ProjectType]; !ok {
		details["projectType"] = "unknown project type"
	}
	label := subdomain.Normalize(input.Subdomain)
	if len(label) < subdomain.MinLength {
		details["subdomain"] = "subdomain must be at least 3 characters"
	}
	if len(details) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request", details)
	}

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if label != request.Subdomain {
		availability, err := s.allocator.Check(ctx, label)
		if err != nil {
			return nil, err
		}
		if availability != subdomain.Available {
			return nil, domainError(http.StatusConflict, "SUBDOMAIN_UNAVAILABLE", "Subdomain is not available", map[string]any{
				"availability": string(availability),
			})
		}
	}

	err = s.store.UpdateRequestDetails(ctx, requestID, store.RequestDetails{
		ProjectName: strings.TrimSpace(input.ProjectName),
		Subdomain:   label,
		ProjectType: input.ProjectType,
	})
	if errors.Is(err, store.ErrSubdomainTaken) {
		return nil, domainError(http.StatusConflict, "SUBDOMAIN_UNAVAILABLE", "Subdomain is not available", map[string]any{
			"availability": string(subdomain.Taken),
		})
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.indexRequest(updated)
	return requestPayload(updated, false), nil
}

// Comments

func (s *Service) PostComment(ctx context.Context, session Session, requestID, text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "EMPTY_COMMENT", "Comment text is required", nil)
	}

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	byOwner := request.UserID == session.UserID
	if !byOwner && !session.IsAdmin {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}

	next := lifecycle.AfterComment(lifecycle.Status(request.Status), byOwner)
	comment := store.Comment{
		RequestID: requestID,
		Author:    session.UserName,
		AuthorID:  session.UserID,
		Text:      text,
	}
	if err := s.store.AppendComment(ctx, requestID, comment, string(next)); err != nil {
		return nil, err
	}

	if !byOwner {
		s.notifyNewComment(request, session.UserName)
	}

	updated, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.indexRequest(updated)
	return map[string]any{
		"author":   session.UserName,
		"authorId": session.UserID,
		"text":     text,
		"status":   updated.Status,
	}, nil
}

// Files

func (s *Service) UploadFile(ctx context.Context, session Session, requestID, filename, contentType string, reader io.Reader, size int64) (map[string]any, error) {
	if s.files == nil {
		return nil, domainError(http.StatusServiceUnavailable, "FILES_UNAVAILABLE", "File storage is not configured", nil)
	}
	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != session.UserID && !session.IsAdmin {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}

	key, err := s.files.Upload(ctx, requestID, filename, contentType, reader, size)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRequestProjectLink(ctx, requestID, key); err != nil {
		return nil, err
	}
	return map[string]any{"objectKey": key}, nil
}

func (s *Service) FileURL(ctx context.Context, session Session, requestID, filename string) (map[string]any, error) {
	if s.files == nil {
		return nil, domainError(http.StatusServiceUnavailable, "FILES_UNAVAILABLE", "File storage is not configured", nil)
	}
	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.UserID != session.UserID && !session.IsAdmin {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}

	url, err := s.files.DownloadURL(ctx, requestID, filename, time.Hour)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url}, nil
}

// AI enrichment

func (s *Service) ImproveDescription(ctx context.Context, description string) (map[string]any, error) {
	if err := s.checkAIInput(description); err != nil {
		return nil, err
	}
	improved, err := s.ai.ImproveDescription(ctx, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}
	return map[string]any{"description": improved}, nil
}

func (s *Service) SuggestFeatures(ctx context.Context, description string) (map[string]any, error) {
	if err := s.checkAIInput(description); err != nil {
		return nil, err
	}
	suggestion, err := s.ai.SuggestFeatures(ctx, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}
	return map[string]any{"suggestion": suggestion}, nil
}

func (s *Service) checkAIInput(description string) error {
	if s.ai == nil || !s.ai.Configured() {
		return domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI assistance is not configured", nil)
	}
	if len(strings.TrimSpace(description)) < 20 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request", map[string]string{
			"description": "description must be at least 20 characters",
		})
	}
	return nil
}

// Notifications are best effort. A mail failure never fails the request.

func (s *Service) notifyStatusChanged(request store.Request, status string) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	if err := s.mailer.SendStatusChanged(request.Email, request.ProjectName, status); err != nil {
		log.Printf(`{"event":"notify_status_failed","request_id":"%s","error":"%s"}`, request.ID, err)
	}
}

func (s *Service) notifyNewComment(request store.Request, author string) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	if err := s.mailer.SendNewComment(request.Email, request.ProjectName, author); err != nil {
		log.Printf(`{"event":"notify_comment_failed","request_id":"%s","error":"%s"}`, request.ID, err)
	}
}

func (s *Service) indexRequest(request store.Request) {
	if s.search != nil {
		s.search.IndexRequest(request)
	}
}

func requestPayload(request store.Request, ownerView bool) map[string]any {
	payload := map[string]any{
		"id":                          request.ID,
		"userId":                      request.UserID,
		"name":                        request.Name,
		"email":                       request.Email,
		"whatsapp":                    request.Whatsapp,
		"projectName":                 request.ProjectName,
		"projectType":                 request.ProjectType,
		"otherProjectTypeDescription": request.OtherProjectTypeDescription,
		"subdomain":                   request.Subdomain,
		"hasProjectFiles":             request.HasProjectFiles,
		"projectLink":                 request.ProjectLink,
		"newProjectDescription":       request.NewProjectDescription,
		"status":                      request.Status,
		"createdAt":                   request.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":                   request.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if ownerView {
		payload["hasUnreadUpdate"] = HasUnreadUpdate(request)
	}
	return payload
}

func commentPayloads(comments []store.Comment) []map[string]any {
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, map[string]any{
			"id":        comment.ID,
			"author":    comment.Author,
			"authorId":  comment.AuthorID,
			"text":      comment.Text,
			"createdAt": comment.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}
