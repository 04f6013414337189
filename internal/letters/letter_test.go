package letters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

func TestGenerateLetter(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir)
	require.NoError(t, err)

	ticket := &domain.Ticket{
		TicketNumber:    "240115090000",
		FirstName:       "Jane",
		LastName:        "Doe",
		County:          "Fulton",
		ApprovedAddress: "123 Peachtree St NE",
		PropertyID:      "PAR-0042",
		PremiseType:     domain.PremiseTypeResidence,
	}

	path, err := gen.Generate(ticket, time.Date(2024, time.January, 22, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "address-letter-240115090000.txt"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "January 22, 2024")
	assert.Contains(t, text, "Jane Doe")
	assert.Contains(t, text, "123 Peachtree St NE")
	assert.Contains(t, text, "Fulton County")
	assert.Contains(t, text, "Ticket 240115090000")
}

func TestGenerateLetterRequiresApprovedAddress(t *testing.T) {
	gen, err := NewGenerator(t.TempDir())
	require.NoError(t, err)

	_, err = gen.Generate(&domain.Ticket{TicketNumber: "240115090000"}, time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}
