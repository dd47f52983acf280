package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithSearchPath(t *testing.T) {
	assert.Equal(t,
		"postgres://u:p@localhost:5432/db?sslmode=disable&search_path=s1",
		withSearchPath("postgres://u:p@localhost:5432/db?sslmode=disable", "s1"))
	assert.Equal(t,
		"postgres://u:p@localhost:5432/db?search_path=s1",
		withSearchPath("postgres://u:p@localhost:5432/db", "s1"))
	assert.Equal(t,
		"host=localhost dbname=db search_path=s1",
		withSearchPath("host=localhost dbname=db", "s1"))
}
