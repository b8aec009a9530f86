package database

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postgresSchema(t *testing.T) string {
	t.Helper()
	data, err := postgresMigrations.ReadFile("migrations/postgres/00001_init.sql")
	require.NoError(t, err)
	return string(data)
}

func policy(t *testing.T, schema, name string) string {
	t.Helper()
	m := regexp.MustCompile(`(?s)CREATE POLICY ` + name + ` .*?;`).FindString(schema)
	require.NotEmpty(t, m, "policy %s", name)
	return m
}

func TestPostgresSchema_JoinPolicyChecksTheTargetProject(t *testing.T) {
	join := policy(t, postgresSchema(t), "project_clients_join")

	// an unqualified project_id inside the subquery would bind to ac.project_id
	assert.Contains(t, join, "ac.project_id = project_clients.project_id")
	assert.NotRegexp(t, `ac\.project_id = project_id\b`, join)
}

func TestPostgresSchema_ClientsCannotUpdateProjects(t *testing.T) {
	schema := postgresSchema(t)
	updates := regexp.MustCompile(`CREATE POLICY \w+ ON projects FOR (UPDATE|ALL)[^;]*;`).FindAllString(schema, -1)
	require.NotEmpty(t, updates)
	for _, p := range updates {
		assert.True(t, strings.Contains(p, "freelancer_id = current_user_id()"), p)
	}
}
