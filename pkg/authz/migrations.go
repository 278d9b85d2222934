package authz

import (
	"context"
	"fmt"

	"github.com/taskhive/taskhive/pkg/storage/migrate"
)

// Migrations returns the schema migrations for the role catalog,
// membership and grant tables
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(64) NOT NULL UNIQUE,
					level INT NOT NULL UNIQUE CHECK (level > 0),
					parent_role_id BIGINT REFERENCES roles(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_roles_level ON roles(level);
			`,
		},
		{
			Version:     2,
			Description: "Create company_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS company_members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					access_tier VARCHAR(16) NOT NULL DEFAULT 'limited',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, company_id)
				);

				CREATE INDEX idx_company_members_user_id ON company_members(user_id);
				CREATE INDEX idx_company_members_company_id ON company_members(company_id);
			`,
		},
		{
			Version:     3,
			Description: "Create resource_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource_grants (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					company_id BIGINT REFERENCES companies(id) ON DELETE CASCADE,
					project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
					task_id BIGINT REFERENCES tasks(id) ON DELETE CASCADE,
					subtask_id BIGINT REFERENCES subtasks(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					access_tier VARCHAR(16) NOT NULL DEFAULT 'limited',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (num_nonnulls(company_id, project_id, task_id, subtask_id) = 1)
				);

				CREATE INDEX idx_resource_grants_user_id ON resource_grants(user_id);
				CREATE INDEX idx_resource_grants_company_id ON resource_grants(company_id);
				CREATE INDEX idx_resource_grants_project_id ON resource_grants(project_id);
				CREATE INDEX idx_resource_grants_task_id ON resource_grants(task_id);
				CREATE INDEX idx_resource_grants_subtask_id ON resource_grants(subtask_id);

				-- one grant per user per resource
				CREATE UNIQUE INDEX idx_resource_grants_user_company ON resource_grants(user_id, company_id) WHERE company_id IS NOT NULL;
				CREATE UNIQUE INDEX idx_resource_grants_user_project ON resource_grants(user_id, project_id) WHERE project_id IS NOT NULL;
				CREATE UNIQUE INDEX idx_resource_grants_user_task ON resource_grants(user_id, task_id) WHERE task_id IS NOT NULL;
				CREATE UNIQUE INDEX idx_resource_grants_user_subtask ON resource_grants(user_id, subtask_id) WHERE subtask_id IS NOT NULL;
			`,
		},
	}
}

// SeedRoles inserts any missing catalog roles, chaining each to the next
// more privileged one via parent_role_id
func SeedRoles(ctx context.Context, store *Store) error {
	existing, err := store.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roles: %w", err)
	}

	byLevel := make(map[int]Role, len(existing))
	for _, role := range existing {
		byLevel[role.Level] = role
	}

	var parentID *int64
	for _, role := range RoleCatalog() {
		if seeded, ok := byLevel[role.Level]; ok {
			id := seeded.ID
			parentID = &id
			continue
		}

		role.ParentRoleID = parentID
		if err := store.CreateRole(ctx, &role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
		id := role.ID
		parentID = &id
	}

	return nil
}
