// Package telegram is a minimal Telegram Bot API client covering the calls
// pollgate needs: sending and editing messages with inline keyboards,
// acknowledging callback queries, deleting messages, webhook management and
// getUpdates long-polling. Connection settings (proxy, pool size, timeout)
// are injected via ClientConfig at startup.
package telegram
