// Package telegram is the send-only Telegram client behind the log sink.
package telegram
