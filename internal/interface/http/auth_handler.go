package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/internal/application"
	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/interface/middleware"
	"github.com/oksasatya/ailens-auth/pkg/response"
	"github.com/oksasatya/ailens-auth/pkg/validation"
)

type AuthHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger}
}

type RegisterRequest struct {
	FirstName       string `json:"firstName" binding:"required,personname"`
	LastName        string `json:"lastName" binding:"required,personname"`
	Email           string `json:"email" binding:"required,email,max=254"`
	Phone           string `json:"phone" binding:"required,phone"`
	Password        string `json:"password" binding:"required,pwd"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

// Channel selects the status flag the code confirms; it defaults to phone.
type VerifyOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	OTP     string `json:"otp" binding:"required,numeric,max=10"`
	Channel string `json:"channel" binding:"omitempty,oneof=phone email"`
}

type ResendOTPRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Channel string `json:"channel" binding:"omitempty,oneof=phone email"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginRequest struct {
	ExternalAssertion string `json:"externalAssertion" binding:"required"`
}

type AuthResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expiresAt"`
	User      *entity.PublicAccount `json:"user"`
	OTP       string                `json:"otp,omitempty"`
	Created   *bool                 `json:"created,omitempty"`
}

type OTPResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
	OTP       string    `json:"otp,omitempty"`
}

func toAuthResponse(r *application.AuthResult) AuthResponse {
	pub := r.Account.Public()
	return AuthResponse{Token: r.Token, ExpiresAt: r.ExpiresAt, User: &pub, OTP: r.OTP}
}

// bind decodes the JSON body; on failure it writes the 400 and returns false.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Fail(c, http.StatusBadRequest, string(apperr.KindValidation), "invalid request", validation.ToDetails(err))
		return false
	}
	return true
}

// fail maps a service error to its HTTP status and error code.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.StatusOf(kind)
	if status >= http.StatusInternalServerError {
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("request failed")
		kind = apperr.KindInternal
	}
	response.Fail(c, status, string(kind), apperr.PublicMessage(err), nil)
}

// Register POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toAuthResponse(res), "account registered", nil)
}

// VerifyOTP POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !bind(c, &req) {
		return
	}
	flag, _ := entity.ParseVerificationFlag(req.Channel)
	a, err := h.Svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP, flag)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": a.Public()}, string(flag)+" verified", nil)
}

// ResendOTP POST /auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if !bind(c, &req) {
		return
	}
	flag, _ := entity.ParseVerificationFlag(req.Channel)
	out, err := h.Svc.ResendOTP(c.Request.Context(), req.Email, flag)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, OTPResponse{ExpiresAt: out.ExpiresAt, OTP: out.Code}, "otp sent", nil)
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toAuthResponse(res), "login successful", nil)
}

// Google POST /auth/google
func (h *AuthHandler) Google(c *gin.Context) {
	var req GoogleLoginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.Svc.ExternalLogin(c.Request.Context(), req.ExternalAssertion)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := toAuthResponse(res)
	out.Created = &res.Created
	response.Success(c, http.StatusOK, out, "login successful", nil)
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	a, err := h.Svc.Me(c.Request.Context(), c.GetString(middleware.CtxAccountIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, a.Public(), "ok", nil)
}

// Activity GET /auth/activity?size=n
func (h *AuthHandler) Activity(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	events, err := h.Svc.Activity(c.Request.Context(), c.GetString(middleware.CtxAccountIDKey), size)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, events, "ok", gin.H{"count": len(events)})
}

// Logout POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Svc.Logout(c.Request.Context(), middleware.ClaimsFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "logged out", nil)
}
