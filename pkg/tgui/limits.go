package tgui

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

// MaxCaptionLen is Telegram's media caption limit in characters.
const MaxCaptionLen = 1024

// MaxTextLen is Telegram's text message limit in characters.
const MaxTextLen = 4096
