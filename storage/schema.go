package storage

// Timestamps and durations are stored as Unix milliseconds and booleans as
// 0/1 so both dialects share the same row shape. A last_synced of 0 means
// the channel was never synced.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	color TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS channels (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	last_synced INTEGER NOT NULL DEFAULT 0,
	platform TEXT NOT NULL DEFAULT 'YOUTUBE',
	position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_channels_topic ON channels(topic_id);
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT NOT NULL DEFAULT '',
	published_at INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	watched INTEGER NOT NULL DEFAULT 0,
	platform TEXT NOT NULL DEFAULT 'YOUTUBE'
);
CREATE INDEX IF NOT EXISTS idx_videos_channel ON videos(channel_id);
CREATE INDEX IF NOT EXISTS idx_videos_published ON videos(published_at);
CREATE TABLE IF NOT EXISTS summaries (
	video_id TEXT NOT NULL,
	language TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (video_id, language)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS topics (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	color TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS channels (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
	last_synced BIGINT NOT NULL DEFAULT 0,
	platform TEXT NOT NULL DEFAULT 'YOUTUBE',
	position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_channels_topic ON channels(topic_id);
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT NOT NULL DEFAULT '',
	published_at BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	watched INTEGER NOT NULL DEFAULT 0,
	platform TEXT NOT NULL DEFAULT 'YOUTUBE'
);
CREATE INDEX IF NOT EXISTS idx_videos_channel ON videos(channel_id);
CREATE INDEX IF NOT EXISTS idx_videos_published ON videos(published_at);
CREATE TABLE IF NOT EXISTS summaries (
	video_id TEXT NOT NULL,
	language TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (video_id, language)
);
`
