package metadata

// schemaStatements create both tables when absent and add the columns newer
// releases rely on to tables created by older ones.
var schemaStatements = []string{
	`
CREATE TABLE IF NOT EXISTS file_metadata (
    id VARCHAR(255) PRIMARY KEY,
    original_filename VARCHAR(500) NOT NULL,
    file_size BIGINT NOT NULL,
    chunk_count INTEGER NOT NULL,
    gitlab_repo_id INTEGER NOT NULL,
    gitlab_repo_name VARCHAR(500) NOT NULL,
    gitlab_file_path VARCHAR(1000) NOT NULL,
    upload_timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    status VARCHAR(50) DEFAULT 'completed',
    content_type VARCHAR(200),
    upload_id VARCHAR(255)
);`,
	`
CREATE TABLE IF NOT EXISTS chunk_metadata (
    id SERIAL PRIMARY KEY,
    upload_id VARCHAR(255) NOT NULL,
    original_filename VARCHAR(500) NOT NULL,
    chunk_number INTEGER NOT NULL,
    chunk_size BIGINT NOT NULL,
    gitlab_repo_id INTEGER NOT NULL,
    gitlab_repo_name VARCHAR(500) NOT NULL,
    gitlab_chunk_path VARCHAR(1000) NOT NULL,
    upload_timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    status VARCHAR(50) DEFAULT 'completed',
    content_type VARCHAR(200),
    total_chunks INTEGER
);`,
	`ALTER TABLE file_metadata ADD COLUMN IF NOT EXISTS upload_id VARCHAR(255);`,
	`ALTER TABLE chunk_metadata ADD COLUMN IF NOT EXISTS total_chunks INTEGER;`,
	`CREATE INDEX IF NOT EXISTS idx_chunk_metadata_upload_id ON chunk_metadata (upload_id);`,
	`CREATE INDEX IF NOT EXISTS idx_file_metadata_upload_id ON file_metadata (upload_id);`,
	`CREATE INDEX IF NOT EXISTS idx_file_metadata_upload_timestamp ON file_metadata (upload_timestamp DESC);`,
}
