package handler

import (
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/common/dto"
)

const avatarRoute = "/api/users/avatar/"

func toUserInfo(u *database.User) *dto.UserInfo {
	if u == nil {
		return nil
	}
	info := &dto.UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Phone:       u.Phone,
		Bio:         u.Bio,
		Role:        u.RoleName(),
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
	if !u.UpdatedAt.IsZero() {
		updated := u.UpdatedAt
		info.UpdatedAt = &updated
	}
	if u.DateOfBirth != nil {
		info.DateOfBirth = u.DateOfBirth.Format(dto.DateLayout)
	}
	if u.AvatarKey != "" {
		info.AvatarURL = avatarRoute + u.AvatarKey
	}
	return info
}

func toUserInfos(users []*database.User) []*dto.UserInfo {
	out := make([]*dto.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, toUserInfo(u))
	}
	return out
}
