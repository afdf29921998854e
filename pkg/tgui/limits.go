package tgui

import "errors"

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
// NOTE: This is the length of the full "action:payload" string.
const MaxCallbackDataLen = 64

// MaxInlineButtons is Telegram's hard cap on buttons per inline keyboard.
// Keyboards over the cap fail to render entirely, so builders must truncate.
const MaxInlineButtons = 100

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")
