package oauth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

// UserInfoService returns OIDC profile claims. Callers gate it behind a
// verified access token.
type UserInfoService interface {
	GetUserInfo(ctx context.Context, userID string) (*UserInfo, error)
}

type userInfoService struct {
	d Deps
}

func newUserInfoService(d Deps) *userInfoService { return &userInfoService{d: d} }

func (s *userInfoService) GetUserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	u, err := s.d.Users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, unauthorized(CodeInvalidToken, "user not found")
		}
		return nil, internalErr(err)
	}
	tenants, err := tenantRoles(ctx, s.d.Memberships, u.ID)
	if err != nil {
		return nil, internalErr(err)
	}

	name := u.DisplayName
	if name == "" {
		name = strings.TrimSpace(u.GivenName + " " + u.FamilyName)
	}
	info := &UserInfo{
		Sub:           u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          name,
		GivenName:     u.GivenName,
		FamilyName:    u.FamilyName,
		Picture:       u.Picture,
		Tenants:       tenants,
	}
	if !u.UpdatedAt.IsZero() {
		info.UpdatedAt = u.UpdatedAt.Unix()
	}
	return info, nil
}
