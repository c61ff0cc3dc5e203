// Package enrich holds the contact domain model: the CSV shape the
// service accepts and the rules for turning a row into a provider
// match request.
package enrich

import (
	"net/url"
	"strings"

	"leadlift/apollo"
)

// RequiredHeaders are the CSV columns a valid upload must contain.
// Extra columns are ignored; the output file carries exactly these
// plus the Email column.
var RequiredHeaders = []string{"First Name", "Last Name", "LinkedIn URL", "Company Name", "Company Website"}

// EmailHeader is the column appended to the output file.
const EmailHeader = "Email"

// Contact is one row of the uploaded spreadsheet.
type Contact struct {
	FirstName      string
	LastName       string
	LinkedInURL    string
	CompanyName    string
	CompanyWebsite string
}

// ExtractDomain pulls a bare domain out of a company website value.
// Handles scheme-less values, trims slashes and strips a leading www.
// Returns "" when no domain can be derived.
func ExtractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	domain := u.Host
	if domain == "" {
		domain = u.Path
	}
	domain = strings.Trim(domain, "/")
	domain = strings.TrimPrefix(domain, "www.")
	return domain
}

// MatchRequest converts a contact into a provider lookup. Returns nil
// when the row cannot be matched: missing first or last name, or
// neither a company domain nor a LinkedIn URL to anchor the search.
func (c Contact) MatchRequest() *apollo.MatchRequest {
	firstName := strings.TrimSpace(c.FirstName)
	lastName := strings.TrimSpace(c.LastName)
	linkedin := strings.TrimSpace(c.LinkedInURL)
	domain := ExtractDomain(c.CompanyWebsite)

	if firstName == "" || lastName == "" || (domain == "" && linkedin == "") {
		return nil
	}

	return &apollo.MatchRequest{
		FirstName:        firstName,
		LastName:         lastName,
		LinkedinURL:      linkedin,
		OrganizationName: strings.TrimSpace(c.CompanyName),
		Domain:           domain,
	}
}
