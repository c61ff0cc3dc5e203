package enrich

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadContacts parses an uploaded CSV. The header row must contain all
// RequiredHeaders; their order and any extra columns do not matter.
func ReadContacts(r io.Reader) ([]Contact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range RequiredHeaders {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i := index[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	var contacts []Contact
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		contacts = append(contacts, Contact{
			FirstName:      field(record, "First Name"),
			LastName:       field(record, "Last Name"),
			LinkedInURL:    field(record, "LinkedIn URL"),
			CompanyName:    field(record, "Company Name"),
			CompanyWebsite: field(record, "Company Website"),
		})
	}
	return contacts, nil
}

// WriteResults writes the output CSV: the five input columns plus the
// Email column. emails must be indexed like contacts; rows without a
// result carry an empty Email cell.
func WriteResults(w io.Writer, contacts []Contact, emails []string) error {
	writer := csv.NewWriter(w)

	header := append(append([]string{}, RequiredHeaders...), EmailHeader)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, c := range contacts {
		email := ""
		if i < len(emails) {
			email = emails[i]
		}
		record := []string{c.FirstName, c.LastName, c.LinkedInURL, c.CompanyName, c.CompanyWebsite, email}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
