package letters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

const letterTemplate = `{{.Date}}

{{.FirstName}} {{.LastName}}
{{.ExistingAddress}}

RE: Address Assignment - Ticket {{.TicketNumber}}

Dear {{.FirstName}} {{.LastName}},

This letter confirms that the following address has been officially
assigned for your property in {{.County}} County:

    {{.ApprovedAddress}}

Property ID: {{.PropertyID}}
Premise Type: {{.PremiseType}}

Please begin using this address for all correspondence, deliveries, and
emergency services. Contact our office if you have any questions.

Sincerely,
GIS Addressing Office
`

// Generator renders address confirmation letters to disk.
type Generator struct {
	dir  string
	tmpl *template.Template
}

// NewGenerator parses the letter template and ensures the output
// directory exists.
func NewGenerator(dir string) (*Generator, error) {
	tmpl, err := template.New("address_letter").Parse(letterTemplate)
	if err != nil {
		return nil, fmt.Errorf("letters: parse template: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("letters: create dir: %w", err)
	}
	return &Generator{dir: dir, tmpl: tmpl}, nil
}

// Generate writes the confirmation letter for a ticket and returns the
// file path. The ticket must already carry an approved address.
func (g *Generator) Generate(ticket *domain.Ticket, at time.Time) (string, error) {
	if ticket.ApprovedAddress == "" {
		return "", apperrors.NewValidationError("ticket has no approved address to generate a letter for", nil)
	}

	data := struct {
		Date            string
		FirstName       string
		LastName        string
		ExistingAddress string
		TicketNumber    string
		County          string
		ApprovedAddress string
		PropertyID      string
		PremiseType     string
	}{
		Date:            at.Format("January 2, 2006"),
		FirstName:       ticket.FirstName,
		LastName:        ticket.LastName,
		ExistingAddress: ticket.ExistingAddress,
		TicketNumber:    ticket.TicketNumber,
		County:          ticket.County,
		ApprovedAddress: ticket.ApprovedAddress,
		PropertyID:      ticket.PropertyID,
		PremiseType:     string(ticket.PremiseType),
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return "", apperrors.NewInternalError(err)
	}

	path := filepath.Join(g.dir, fmt.Sprintf("address-letter-%s.txt", ticket.TicketNumber))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return path, nil
}
