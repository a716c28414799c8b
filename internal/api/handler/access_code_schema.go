package handler

import (
	"time"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

type generateRequest struct {
	Role string `json:"role" validate:"required"`
}

type consumeRequest struct {
	Role             string `json:"role"              validate:"required"`
	Code             string `json:"code"              validate:"required"`
	ConsumerIdentity string `json:"consumer_identity" validate:"required,max=255"`
}

type accessCodeResponse struct {
	Role      string     `json:"role"`
	Code      string     `json:"code"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedBy string     `json:"created_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    string     `json:"used_by,omitempty"`
}

type activeCodeResponse struct {
	Role                 string    `json:"role"`
	Code                 string    `json:"code"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
	TimeRemainingSeconds int64     `json:"time_remaining_seconds"`
}

type consumeResponse struct {
	Valid bool   `json:"valid"`
	Role  string `json:"role"`
}

func toAccessCodeResponse(c *domain.AccessCode) accessCodeResponse {
	resp := accessCodeResponse{
		Role:      string(c.Role),
		Code:      c.Code,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
		CreatedBy: c.CreatedBy,
		UsedAt:    c.UsedAt,
	}
	if c.UsedBy != nil {
		resp.UsedBy = *c.UsedBy
	}
	return resp
}

func toActiveCodeResponse(a ports.ActiveAccessCode) activeCodeResponse {
	return activeCodeResponse{
		Role:                 string(a.Role),
		Code:                 a.Code,
		Status:               string(a.Status),
		CreatedAt:            a.CreatedAt,
		ExpiresAt:            a.ExpiresAt,
		TimeRemainingSeconds: int64(a.TimeRemaining / time.Second),
	}
}
