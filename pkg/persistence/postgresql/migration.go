package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				name VARCHAR(200) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('draft', 'active', 'paused', 'archived')),
				trigger_segment_id TEXT,
				unsubscribe_category_id TEXT,
				track_opens BOOLEAN NOT NULL DEFAULT false,
				track_clicks BOOLEAN NOT NULL DEFAULT false,
				exit_on_all_emails BOOLEAN NOT NULL DEFAULT false,
				exit_on_segment_leave BOOLEAN NOT NULL DEFAULT false,
				active_version INT,
				draft_version INT NOT NULL DEFAULT 0,
				has_unsaved_changes BOOLEAN NOT NULL DEFAULT false,
				stats JSONB NOT NULL DEFAULT '{}',
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_steps (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id TEXT NOT NULL,
				step_type VARCHAR(20) NOT NULL CHECK (step_type IN ('wait', 'email', 'condition')),
				position INT NOT NULL,
				parent_step_id TEXT,
				branch VARCHAR(3) CHECK (branch IN ('yes', 'no')),
				config JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_steps_position ON workflow_steps(workflow_id, position);

			CREATE TABLE workflow_versions (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				version_number INT NOT NULL,
				settings JSONB NOT NULL,
				steps JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, version_number)
			);
		`,
		2: `
			CREATE TABLE segments (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				contact_count INT NOT NULL DEFAULT 0
			);

			CREATE TABLE contact_categories (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL
			);

			CREATE TABLE senders (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL
			);

			CREATE TABLE templates (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				subject TEXT NOT NULL DEFAULT ''
			);
		`,
	}
}
