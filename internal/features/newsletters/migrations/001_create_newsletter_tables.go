package migrations

import (
	"letterbox/internal/core"
)

// Migration001CreateNewsletterTables creates subscriptions and entries
var Migration001CreateNewsletterTables = core.Migration{
	Feature:     FeatureName,
	Version:     1,
	Name:        "create_newsletter_tables",
	Description: "Create newsletter subscription and entry tables",
	UpSQL: `
		-- Newsletter feeds the user follows
		CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			feed_url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'error')),
			last_sync_at DATETIME,
			sync_error TEXT,
			image_url TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		-- One row per distinct (subscription, guid hash)
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
			guid_hash TEXT NOT NULL,
			title TEXT NOT NULL,
			content_html TEXT NOT NULL DEFAULT '',
			link TEXT,
			author TEXT NOT NULL DEFAULT '',
			published_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'unread' CHECK (status IN ('unread', 'read')),
			starred BOOLEAN NOT NULL DEFAULT 0,
			archived BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(subscription_id, guid_hash)
		);

		CREATE INDEX IF NOT EXISTS idx_entries_subscription_published ON entries(subscription_id, published_at);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status);
	`,
	DownSQL: `
		DROP INDEX IF EXISTS idx_subscriptions_status;
		DROP INDEX IF EXISTS idx_entries_subscription_published;
		DROP TABLE IF EXISTS entries;
		DROP TABLE IF EXISTS subscriptions;
	`,
}
