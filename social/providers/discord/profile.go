package discord

import (
	"fmt"

	"github.com/goliatone/go-lms-auth/social"
)

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Email      string `json:"email"`
	Verified   bool   `json:"verified"`
	Locale     string `json:"locale"`
}

// avatarURL resolves the avatar hash to a CDN url, empty when unset
func avatarURL(cdn string, user *discordUser) string {
	if user.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", cdn, user.ID, user.Avatar)
}

func mapProfile(user *discordUser, cdn string) *social.SocialProfile {
	return &social.SocialProfile{
		Provider:       ProviderName,
		ProviderUserID: user.ID,
		Email:          user.Email,
		EmailVerified:  user.Verified,
		Attributes: map[string]any{
			"id":          user.ID,
			"username":    user.Username,
			"global_name": user.GlobalName,
			"avatar":      user.Avatar,
			"avatar_url":  avatarURL(cdn, user),
			"email":       user.Email,
			"verified":    user.Verified,
			"locale":      user.Locale,
		},
	}
}
