package migrations

import (
	"letterbox/internal/core"
)

// Migration001CreateImageBlobs creates the image blob store
var Migration001CreateImageBlobs = core.Migration{
	Feature:     FeatureName,
	Version:     1,
	Name:        "create_image_blobs",
	Description: "Create cached image blob table",
	UpSQL: `
		CREATE TABLE IF NOT EXISTS image_blobs (
			key TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			content_type TEXT NOT NULL,
			data BLOB NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_image_blobs_source_url ON image_blobs(source_url);
	`,
	DownSQL: `
		DROP INDEX IF EXISTS idx_image_blobs_source_url;
		DROP TABLE IF EXISTS image_blobs;
	`,
}
