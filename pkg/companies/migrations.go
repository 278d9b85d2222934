package companies

import "github.com/taskhive/taskhive/pkg/storage/migrate"

// Migrations returns the schema migrations for companies and invitations
func Migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "Create companies table",
			SQL: `
				CREATE TABLE IF NOT EXISTS companies (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_alias VARCHAR(255) NOT NULL UNIQUE CHECK (name_alias ~ '^[a-z0-9]+$'),
					description TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_companies_name_alias ON companies(name_alias);
			`,
		},
		{
			Version:     2,
			Description: "Create company_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS company_invitations (
					id BIGSERIAL PRIMARY KEY,
					company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role_level INT NOT NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					invited_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					accepted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(company_id, email)
				);

				CREATE INDEX idx_company_invitations_token ON company_invitations(token);
				CREATE INDEX idx_company_invitations_expires_at ON company_invitations(expires_at);
			`,
		},
	}
}
