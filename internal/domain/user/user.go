package user

import "pnr_tracker/internal/domain/notification"

// Preferences holds the per-channel opt-in flags.
type Preferences struct {
	Email    bool `json:"email" bson:"email"`
	SMS      bool `json:"sms" bson:"sms"`
	Telegram bool `json:"telegram" bson:"telegram"`
}

// User is owned by the account service; the tracker only reads it.
type User struct {
	ID             string      `json:"id" bson:"_id"`
	Email          string      `json:"email" bson:"email"`
	FirstName      string      `json:"firstName" bson:"firstName"`
	LastName       string      `json:"lastName" bson:"lastName"`
	Phone          string      `json:"phone" bson:"phone"`
	TelegramChatID string      `json:"telegramChatId" bson:"telegramChatId"`
	Preferences    Preferences `json:"notificationPreferences" bson:"notificationPreferences"`
}

// Recipient returns the address for ch when the user has opted in to it and has an
// address on file.
func (u *User) Recipient(ch notification.Channel) (string, bool) {
	var enabled bool
	var address string
	switch ch {
	case notification.ChannelEmail:
		enabled, address = u.Preferences.Email, u.Email
	case notification.ChannelSMS:
		enabled, address = u.Preferences.SMS, u.Phone
	case notification.ChannelTelegram:
		enabled, address = u.Preferences.Telegram, u.TelegramChatID
	default:
		return "", false
	}
	if !enabled || address == "" {
		return "", false
	}
	return address, true
}
