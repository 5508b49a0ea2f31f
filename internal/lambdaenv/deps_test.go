package lambdaenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit_MissingTableName(t *testing.T) {
	t.Setenv("TABLE_NAME", "")
	t.Setenv("AWS_REGION", "us-east-1")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TABLE_NAME")
}

func TestInit_MissingRegion(t *testing.T) {
	t.Setenv("TABLE_NAME", "deploygate-test")
	t.Setenv("AWS_REGION", "")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_REGION")
}

func TestInit_MissingAllowedRefs(t *testing.T) {
	t.Setenv("TABLE_NAME", "deploygate-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("DEPLOY_ALLOWED_REFS", "")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DEPLOY_ALLOWED_REFS")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"main", "release/v2"}, splitList("main, release/v2"))
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , ,"))
}
