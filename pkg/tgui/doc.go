// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard building with the platform's affordance limits applied
//   - Callback data helpers (action:payload)
//   - HTML-safe text wrappers for ParseMode="HTML"
package tgui
